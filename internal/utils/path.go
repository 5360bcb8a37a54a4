// utils/path.go - Path handling utilities
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var (
	AppRootDir = "./.telemetry-dashboard"
	LogsDir    = "./.telemetry-dashboard/logs"
	StoreDir   = "./.telemetry-dashboard/store"
	ConfigFile = "./.telemetry-dashboard/config.toml"
)

// GetRootDir gets cross-platform root directory
// Returns paths like Windows: %USERPROFILE%/.appname, Linux/macOS: ~/.appname
func GetRootDir(appName string) (string, error) {
	var rootDir string

	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			rootDir = filepath.Join(userProfile, "."+appName)
		} else if appData := os.Getenv("APPDATA"); appData != "" {
			rootDir = filepath.Join(appData, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	default:
		// XDG_CONFIG_HOME wins on Linux when set
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" && runtime.GOOS != "darwin" {
			rootDir = filepath.Join(xdgConfig, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	}

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return "", err
	}

	AppRootDir = rootDir
	ConfigFile = filepath.Join(rootDir, "config.toml")

	return rootDir, nil
}

// GetLogDir gets log directory
func GetLogDir(rootPath string) (string, error) {
	logPath, err := ensureSubDir(rootPath, "logs")
	if err != nil {
		return "", err
	}
	LogsDir = logPath
	return logPath, nil
}

// GetStoreDir gets the durable store directory
func GetStoreDir(rootPath string) (string, error) {
	storePath, err := ensureSubDir(rootPath, "store")
	if err != nil {
		return "", err
	}
	StoreDir = storePath
	return storePath, nil
}

func ensureSubDir(rootPath, name string) (string, error) {
	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		return "", fmt.Errorf("root path %s does not exist", rootPath)
	}
	dir := filepath.Join(rootPath, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
