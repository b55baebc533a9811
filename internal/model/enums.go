package model

// Platform is the closed set of companion-client platforms.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// PlatformValues is used for boundary validation of incoming requests.
var PlatformValues = []string{string(PlatformIOS), string(PlatformAndroid)}

func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}
