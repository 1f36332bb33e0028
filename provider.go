package screenrec

import "sync/atomic"

// Provider identifies a codec implementation.
type Provider uint8

const (
	ProviderAuto    Provider = iota // Let library choose best available
	ProviderGo                      // Pure Go encoders (MJPEG, PCM)
	ProviderLibvpx                  // BSD VP8
	ProviderLibopus                 // BSD Opus
	providerCount
)

// License represents the software license of a provider.
type License uint8

const (
	LicenseGPL License = iota // Copyleft - requires source disclosure
	LicenseBSD                // Permissive - no copyleft obligations
)

// Permissive returns true if the license has no copyleft obligations.
func (l License) Permissive() bool { return l == LicenseBSD }

func (l License) String() string {
	switch l {
	case LicenseGPL:
		return "GPL"
	case LicenseBSD:
		return "BSD"
	default:
		return "unknown"
	}
}

// Features is a bitmask of provider capabilities.
type Features uint32

const (
	FeatureLowLatency     Features = 1 << iota // Optimized for real-time
	FeatureDynamicBitrate                      // Runtime bitrate changes
	FeatureNative                              // Requires a native library
)

// Has returns true if all specified features are supported.
func (f Features) Has(feature Features) bool { return f&feature == feature }

type providerMeta struct {
	Name     string
	License  License
	Features Features
}

var providerInfo = [providerCount]providerMeta{
	ProviderAuto:    {"auto", LicenseBSD, 0},
	ProviderGo:      {"go", LicenseBSD, FeatureLowLatency},
	ProviderLibvpx:  {"libvpx", LicenseBSD, FeatureLowLatency | FeatureDynamicBitrate | FeatureNative},
	ProviderLibopus: {"libopus", LicenseBSD, FeatureLowLatency | FeatureDynamicBitrate | FeatureNative},
}

// Runtime availability - set by init() in provider implementations.
var providerAvailable [providerCount]atomic.Bool

func init() {
	setProviderAvailable(ProviderGo)
}

// String returns the provider name.
func (p Provider) String() string {
	if p >= providerCount {
		return "unknown"
	}
	return providerInfo[p].Name
}

// License returns the provider's license type.
func (p Provider) License() License {
	if p >= providerCount {
		return LicenseGPL
	}
	return providerInfo[p].License
}

// Features returns the provider's feature bitmask.
func (p Provider) Features() Features {
	if p >= providerCount {
		return 0
	}
	return providerInfo[p].Features
}

// Available returns true if the provider is usable at runtime.
func (p Provider) Available() bool {
	if p >= providerCount {
		return false
	}
	return providerAvailable[p].Load()
}

func setProviderAvailable(p Provider) {
	if p < providerCount {
		providerAvailable[p].Store(true)
	}
}
