package version

// Version is the current version of the frame cipher engine
const Version = "0.3.1"

// UserAgent returns the User-Agent string for HTTP requests
func UserAgent() string {
	return "framecipher/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "framecipher/" + Version
}
