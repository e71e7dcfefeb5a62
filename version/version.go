package version

var (
	// semver and revision are overridden with -ldflags when a release is tagged
	semver   = "0.3.0"
	revision = "unknown"
)

// Get returns the SDK version sent in the Aa-Sdk-Version header.
func Get() string {
	return semver
}

func Commit() string {
	return revision
}
