package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/waveslice/retrig/internal/gen"
	"github.com/waveslice/retrig/internal/rules"
)

// LoadResult holds everything compiled from a definition directory.
// Rules keep their declaration order, which is also their evaluation
// order.
type LoadResult struct {
	Rules     []*rules.Rule
	Presets   map[string]gen.Preset
	FileCount int
}

// LoadDir compiles every .cue file under dir into rules and presets.
// Top-level `rule` and `preset` structs are recognized; anything else
// is ignored so definition files can carry shared constants.
func LoadDir(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("cannot access %s: %v", dir, err)}
	}
	if !info.IsDir() {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(files) == 0 {
		return nil, &CompileError{Field: "dir", Message: fmt.Sprintf("no .cue files in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Field: "dir", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	result, err := Compile(value)
	if err != nil {
		return nil, err
	}
	result.FileCount = len(files)
	return result, nil
}

// Compile extracts rules and presets from an already-built CUE value.
// Split out from LoadDir so tests can feed CompileString output
// directly.
func Compile(value cue.Value) (*LoadResult, error) {
	result := &LoadResult{Presets: make(map[string]gen.Preset)}

	rulesVal := value.LookupPath(cue.ParsePath("rule"))
	if rulesVal.Exists() {
		iter, err := rulesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			r, err := CompileRule(iter.Value())
			if err != nil {
				return nil, err
			}
			result.Rules = append(result.Rules, r)
		}
	}

	presetsVal := value.LookupPath(cue.ParsePath("preset"))
	if presetsVal.Exists() {
		iter, err := presetsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name, p, err := CompilePreset(iter.Value())
			if err != nil {
				return nil, err
			}
			if _, dup := result.Presets[name]; dup {
				return nil, &CompileError{Field: "preset", Message: fmt.Sprintf("duplicate preset %q", name), Pos: iter.Value().Pos()}
			}
			result.Presets[name] = p
		}
	}

	return result, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
