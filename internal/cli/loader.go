package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lumen/internal/catalog"
	"github.com/roach88/lumen/internal/cueschema"
	"github.com/roach88/lumen/internal/schema"
)

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads a schema from path, which may be a SQLite catalog
// (.db), a single CUE declaration file (.cue), or a directory of CUE
// files forming one instance.
func LoadSchema(path string) (*schema.Schema, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
	}

	if info.IsDir() {
		return loadSchemaDir(path)
	}

	switch filepath.Ext(path) {
	case ".db", ".sqlite":
		return loadSchemaCatalog(path)
	case ".cue":
		s, err := cueschema.LoadFile(path)
		if err != nil {
			return nil, convertSchemaError(err)
		}
		return s, nil
	default:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unsupported schema file type: %s", path)}
	}
}

// loadSchemaDir builds one CUE instance from every .cue file in dir.
func loadSchemaDir(dir string) (*schema.Schema, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	cctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	s, err := cueschema.Load(value)
	if err != nil {
		return nil, convertSchemaError(err)
	}
	return s, nil
}

// loadSchemaCatalog reads a schema snapshot from a SQLite catalog.
func loadSchemaCatalog(path string) (*schema.Schema, error) {
	c, err := catalog.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("opening catalog: %v", err)}
	}
	defer c.Close()

	s, err := c.Load(context.Background())
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading catalog: %v", err)}
	}
	return s, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertSchemaError converts a schema compile error to a LoadError with
// position info.
func convertSchemaError(err error) error {
	var compileErr *cueschema.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Schema load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Schema declaration errors
	ErrCodeInvalidType    = "E101" // Invalid type declaration
	ErrCodeInvalidPointer = "E102" // Invalid pointer declaration
	ErrCodeInvalidView    = "E103" // Invalid view declaration
	ErrCodeInvalidTuple   = "E104" // Invalid tuple declaration

	// Path compilation errors, one per error class
	ErrCodeParse     = "E200" // Path expression syntax error
	ErrCodeQuery     = "E201" // Query error (type mismatch, cardinality)
	ErrCodeReference = "E202" // Unknown type or pointer reference
	ErrCodeInternal  = "E203" // Compiler invariant violation
)

// MapFieldToErrorCode maps a schema error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.HasPrefix(field, "view."):
		return ErrCodeInvalidView
	case strings.HasPrefix(field, "tuple."):
		return ErrCodeInvalidTuple
	case strings.Contains(field, "."):
		// Qualified pointer fields look like "default::Person.name".
		return ErrCodeInvalidPointer
	case field == "schema", field == "cue":
		return ErrCodeInvalidType
	default:
		return ErrCodeGeneric
	}
}
