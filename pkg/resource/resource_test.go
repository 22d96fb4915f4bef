package resource

import (
	"errors"
	"strings"
	"testing"

	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
	"github.com/mensylisir/miniotst/pkg/osprobe"
)

func ubuntuReq(version string) BinaryRequest {
	return BinaryRequest{
		Version: version,
		OS:      osprobe.Descriptor{OS: "linux", Distro: "ubuntu", Release: "22.04"},
		Arch:    "x86_64",
	}
}

func TestNormalizePlatformUnknownFails(t *testing.T) {
	_, err := NormalizePlatform("plan9", "v4.5.0")
	var perr *miniotsterrors.PlatformError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PlatformError, got %v", err)
	}
}

func TestNormalizePlatformWindowsLegacyVsModern(t *testing.T) {
	legacy, err := NormalizePlatform("win32", "v4.2.9")
	if err != nil || legacy != "win32" {
		t.Errorf("NormalizePlatform(win32, v4.2.9) = (%q, %v), want win32", legacy, err)
	}
	modern, err := NormalizePlatform("win32", "v4.3.0")
	if err != nil || modern != "windows" {
		t.Errorf("NormalizePlatform(win32, v4.3.0) = (%q, %v), want windows", modern, err)
	}
}

func TestNormalizeArchTranslatesSynonyms(t *testing.T) {
	cases := map[string]string{"x64": "amd64", "amd64": "amd64", "x86_64": "amd64", "aarch64": "aarch64", "arm64": "arm64"}
	for in, want := range cases {
		got, err := NormalizeArch("linux", in)
		if err != nil || got != want {
			t.Errorf("NormalizeArch(linux, %q) = (%q, %v), want %q", in, got, err, want)
		}
	}
}

func TestNormalizeArchUnknownFails(t *testing.T) {
	_, err := NormalizeArch("linux", "riscv64")
	var aerr *miniotsterrors.ArchError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *ArchError, got %v", err)
	}
}

func TestArchiveURLUsesExplicitDownloadURL(t *testing.T) {
	req := ubuntuReq("v4.5.0")
	url, err := ArchiveURL(req, "", "https://example.com/custom-archive.tar.gz")
	if err != nil {
		t.Fatalf("ArchiveURL returned error: %v", err)
	}
	if url != "https://example.com/custom-archive.tar.gz" {
		t.Errorf("expected explicit DOWNLOAD_URL to pass through verbatim, got %q", url)
	}
}

func TestArchiveURLBuildsFromMirror(t *testing.T) {
	req := ubuntuReq("RELEASE.2024-08-17T01-24-54Z")
	url, err := ArchiveURL(req, "", "")
	if err != nil {
		t.Fatalf("ArchiveURL returned error: %v", err)
	}
	if !strings.HasPrefix(url, DefaultMirror) {
		t.Errorf("expected url to start with default mirror, got %q", url)
	}
	if !strings.Contains(url, "linux-amd64") {
		t.Errorf("expected platform-arch segment in url, got %q", url)
	}
}

func TestBinaryNameLegacyForm(t *testing.T) {
	req := ubuntuReq("v4.4.2")
	name, err := BinaryName(req, "", false)
	if err != nil {
		t.Fatalf("BinaryName returned error: %v", err)
	}
	if !strings.HasPrefix(name, "mongod-amd64-ubuntu2204-") {
		t.Errorf("unexpected binary name: %q", name)
	}
}

func TestBinaryNameWindowsHasExeSuffix(t *testing.T) {
	req := BinaryRequest{Version: "v4.4.2", OS: osprobe.Descriptor{OS: "windows"}, Arch: "amd64"}
	name, err := BinaryName(req, "", false)
	if err != nil {
		t.Fatalf("BinaryName returned error: %v", err)
	}
	if !strings.HasSuffix(name, ".exe") {
		t.Errorf("expected .exe suffix on windows, got %q", name)
	}
}

func TestDistroTokenARM64RHELIncompatibility(t *testing.T) {
	desc := osprobe.Descriptor{OS: "linux", Distro: "rhel", Release: "8.0"}
	_, err := DistroToken(desc, "arm64", "v4.4.2")
	var verr *miniotsterrors.VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VersionError for ARM64 RHEL 8.0, got %v", err)
	}
}

func TestDistroTokenARM64RHELCompatible(t *testing.T) {
	desc := osprobe.Descriptor{OS: "linux", Distro: "rhel", Release: "8.2"}
	token, err := DistroToken(desc, "arm64", "v4.4.2")
	if err != nil {
		t.Fatalf("expected RHEL 8.2 + v4.4.2 to be compatible, got error: %v", err)
	}
	if token == "" {
		t.Error("expected a non-empty distro token")
	}
}

func TestDistroTokenLatestSentinelSuppressesCheck(t *testing.T) {
	desc := osprobe.Descriptor{OS: "linux", Distro: "rhel", Release: "7.0"}
	if _, err := DistroToken(desc, "arm64", "v6.0-latest"); err != nil {
		t.Errorf("expected -latest sentinel to suppress the incompatibility check, got: %v", err)
	}
}

func TestDistroTokenArchFallsBackToUbuntu(t *testing.T) {
	desc := osprobe.Descriptor{OS: "linux", Distro: "arch"}
	token, err := DistroToken(desc, "amd64", "v5.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "ubuntu2204" {
		t.Errorf("DistroToken(arch) = %q, want ubuntu2204 fallback", token)
	}
}

func TestArchiveNameLegacyOverrideMustMatchPlatformToken(t *testing.T) {
	req := ubuntuReq("v4.4.2")
	if _, err := ArchiveName(req, "not-a-platform-token"); err == nil {
		t.Error("expected an error for an ARCHIVE_NAME without a recognizable platform token")
	}
	if _, err := ArchiveName(req, "minio-macos-v4.4.2.tgz"); err != nil {
		t.Errorf("expected legacy 'macos' token to still be accepted, got: %v", err)
	}
}
