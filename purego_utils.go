//go:build darwin || linux

// Shared utilities for purego-based codec implementations.

package screenrec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// goStringFromPtr converts a C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for {
		if *(*byte)(unsafe.Pointer(uintptr(p) + uintptr(length))) == 0 {
			break
		}
		length++
		if length > 1024 { // Safety limit
			break
		}
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// findModuleRoot walks up the directory tree from the current working directory
// to find the module root (directory containing go.mod).
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// nativeLibPaths lists candidate locations for a native library named base
// (without the lib prefix or extension). envFile names a variable holding a
// full path; the SDK directory variables are checked after it.
func nativeLibPaths(base, envFile string) []string {
	libName := "lib" + base + ".so"
	if runtime.GOOS == "darwin" {
		libName = "lib" + base + ".dylib"
	}

	var paths []string
	if envPath := os.Getenv(envFile); envPath != "" {
		paths = append(paths, envPath)
	}
	for _, env := range []string{"MEDIA_SDK_LIB_PATH", "STREAM_SDK_LIB_PATH"} {
		if dir := os.Getenv(env); dir != "" {
			paths = append(paths, filepath.Join(dir, libName))
		}
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	if root := findModuleRoot(); root != "" {
		paths = append(paths,
			filepath.Join(root, "build", libName),
			filepath.Join(root, "build", "ffi", libName),
		)
	}

	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			filepath.Join("/usr/local/lib", libName),
			filepath.Join("/opt/homebrew/lib", libName),
		)
	case "linux":
		paths = append(paths,
			libName,
			filepath.Join("/usr/local/lib", libName),
			filepath.Join("/usr/lib", libName),
		)
	}
	return paths
}

// dlopenFirst opens the first loadable library in paths and runs register
// against it.
func dlopenFirst(name string, paths []string, register func(handle uintptr) error) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := register(handle); err != nil {
			purego.Dlclose(handle)
			lastErr = err
			continue
		}
		return handle, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("failed to load %s: %w", name, lastErr)
	}
	return 0, errors.New(name + " not found in any standard location")
}
