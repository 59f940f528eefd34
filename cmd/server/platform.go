package main

import "winui-mcp-server/internal/uia"

// Platform-specific builds register their native services through these
// hooks from an init function in a build-tagged file. A build without a
// registration runs with the matching features reported as unavailable
// instead of failing at startup.
var (
	newPlatformProvider func() uia.Provider
	newPlatformDeployer func() uia.Deployer
	newPlatformCapturer func() uia.Capturer
)

func platformProvider() uia.Provider {
	if newPlatformProvider == nil {
		return nil
	}
	return newPlatformProvider()
}

func platformDeployer() uia.Deployer {
	if newPlatformDeployer == nil {
		return nil
	}
	return newPlatformDeployer()
}

func platformCapturer() uia.Capturer {
	if newPlatformCapturer == nil {
		return nil
	}
	return newPlatformCapturer()
}
