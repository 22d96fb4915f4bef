package miniotstconfig

// defaultPinnedVersion is the built-in server version used when neither
// the environment nor the manifest pins one.
const defaultPinnedVersion = "RELEASE.2024-08-17T01-24-54Z"

// defaultValues are the built-in fallbacks, the last of the three
// resolution layers. Keys absent here resolve to "" when neither the
// environment nor the manifest supplies a value.
var defaultValues = map[Key]string{
	Version:                     defaultPinnedVersion,
	PreferGlobalPath:            "true",
	RuntimeDownload:             "true",
	UseHTTP:                     "false",
	SystemBinaryVersionCheck:    "true",
	UseArchiveNameForBinaryName: "false",
	MaxRedirects:                "2",
}
