package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/skypro1111/whisper-onnx-service/internal/engine"
)

// inspect prints the declared inputs and outputs of ONNX model files,
// which is how the decoder's cache slot schema gets verified against a
// new model export before wiring it into the service config.
func main() {
	ortLib := flag.String("ort-lib", "", "Path to the onnxruntime shared library")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <model.onnx> [model2.onnx ...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *ortLib != "" {
		engine.SetRuntimeLibrary(*ortLib)
	}

	exitCode := 0
	for _, path := range flag.Args() {
		if err := inspectModel(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func inspectModel(path string) error {
	session, err := engine.NewONNXSession(path, 1)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("== %s\n", path)

	fmt.Println("inputs:")
	for _, info := range session.Inputs() {
		fmt.Printf("  %-40s %v\n", info.Name, info.Dimensions)
	}

	fmt.Println("outputs:")
	for _, info := range session.Outputs() {
		fmt.Printf("  %-40s %v\n", info.Name, info.Dimensions)
	}

	schema, err := engine.NewCacheSchema(session.Inputs(), 1, 1)
	if err == nil && len(schema.Slots) > 0 {
		fmt.Printf("cache slots: %d\n", len(schema.Slots))
		for _, slot := range schema.Slots {
			kind := "decoder"
			if slot.Kind == engine.SlotEncoder {
				kind = "encoder"
			}
			fmt.Printf("  %-40s -> %-40s (%s)\n", slot.Input, slot.Present, kind)
		}
	}

	return nil
}
