// Command postinstall primes the binary cache for the current platform
// and configured version, the way a package manager's postinstall hook
// would. It never fails the surrounding install: every error is logged
// and swallowed, and the process always exits 0.
package main

import (
	"context"
	"os"
	"runtime"

	"github.com/mensylisir/miniotst/pkg/downloader"
	"github.com/mensylisir/miniotst/pkg/logger"
	"github.com/mensylisir/miniotst/pkg/miniotstconfig"
	"github.com/mensylisir/miniotst/pkg/osprobe"
	"github.com/mensylisir/miniotst/pkg/resource"
)

func main() {
	log := logger.Get().With("component", "postinstall")
	defer log.Sync()

	cwd, err := os.Getwd()
	if err != nil {
		log.Warnf("failed to determine working directory, skipping: %v", err)
		return
	}
	resolver := miniotstconfig.NewResolver(cwd)

	if resolver.Bool(miniotstconfig.DisablePostinstall) {
		log.Infof("DISABLE_POSTINSTALL set, skipping cache warm-up")
		return
	}
	if resolver.Resolve(miniotstconfig.SystemBinary) != "" {
		log.Infof("SYSTEM_BINARY set, skipping cache warm-up")
		return
	}

	req := resource.BinaryRequest{
		Version:      resolver.Resolve(miniotstconfig.Version),
		OS:           osprobe.Probe(),
		Arch:         runtime.GOARCH,
		DownloadDir:  resolver.Resolve(miniotstconfig.DownloadDir),
		SystemBinary: resolver.Resolve(miniotstconfig.SystemBinary),
		CheckMD5:     resolver.Bool(miniotstconfig.MD5Check),
	}

	opts := downloader.Options{
		Mirror:                      resolver.Resolve(miniotstconfig.DownloadMirror),
		DownloadURL:                 resolver.Resolve(miniotstconfig.DownloadURL),
		ArchiveNameOverride:         resolver.Resolve(miniotstconfig.ArchiveName),
		UseArchiveNameForBinaryName: resolver.Bool(miniotstconfig.UseArchiveNameForBinaryName),
		MaxRedirects:                resolver.Int(miniotstconfig.MaxRedirects, 10),
		UseHTTP:                     resolver.Bool(miniotstconfig.UseHTTP),
	}

	dl := downloader.New()
	path, err := dl.Provision(context.Background(), req, opts)
	if err != nil {
		log.Warnf("postinstall cache warm-up failed, tests will download on first use: %v", err)
		return
	}
	log.Infof("cached binary at %s", path)
}
