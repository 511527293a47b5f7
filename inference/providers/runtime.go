package providers

import (
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var environmentMu sync.Mutex

// Initialize prepares the ONNX Runtime environment for the process.
//
// The environment is process-wide: the first successful call loads the shared library and
// later calls are no-ops. Initialize is safe to call from every loader.
//
// Arguments:
//   - cfg: The provider configuration carrying an optional library override.
//
// Returns:
//   - error: An error if the shared library is missing or fails to initialize.
func Initialize(cfg Config) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}

	slog.Debug("onnxruntime environment initialized", "library", libPath)
	return nil
}

// Shutdown destroys the ONNX Runtime environment if it was initialized.
func Shutdown() error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
