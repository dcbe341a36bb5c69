// ABOUTME: Build and product identification
// ABOUTME: Version is overridden at link time with -ldflags "-X"
package version

// Version of the build
var Version = "0.3.0"

const (
	// Product is the display name
	Product = "VISUAL LOCK"
	// Manufacturer is reported to mirror viewers and in the user agent
	Manufacturer = "visual-lock"
)

// UserAgent identifies the application to the gateway.
// Product contains a space, which a user agent token may not.
func UserAgent() string {
	return "visuallock/" + Version
}
