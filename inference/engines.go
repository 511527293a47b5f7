package inference

// Runtime is the execution engine behind a classifier.
type Runtime string

const (
	// RuntimeONNX executes exported graphs with the onnxruntime library.
	RuntimeONNX Runtime = "onnx"
	// RuntimeNative executes Go-native networks in process.
	RuntimeNative Runtime = "native"
	// RuntimeUnknown is reported for classifiers that do not describe themselves.
	RuntimeUnknown Runtime = "unknown"
)
