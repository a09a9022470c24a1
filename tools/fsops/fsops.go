// Package fsops provides local file tools rooted at the invocation working
// directory: read_file, write_file and list_files.
package fsops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/chatmodel"
	"github.com/effective-security/agentic/pkg/schema"
	"github.com/effective-security/agentic/tools"
)

const (
	ReadToolName  = "read_file"
	WriteToolName = "write_file"
	ListToolName  = "list_files"
)

// MaxReadSize bounds the content returned by read_file.
const MaxReadSize = 1 << 20

// ReadRequest represents the read_file input.
type ReadRequest struct {
	Path string `json:"path" jsonschema:"title=path,description=The file path to read."`
}

// WriteRequest represents the write_file input.
type WriteRequest struct {
	Path    string `json:"path" jsonschema:"title=path,description=The file path to write."`
	Content string `json:"content" jsonschema:"title=content,description=The content to write to the file."`
}

// ListRequest represents the list_files input.
type ListRequest struct {
	Path string `json:"path,omitempty" jsonschema:"title=path,description=The directory to list; defaults to the working directory."`
}

// resolve joins a request path with the session working directory and
// rejects paths escaping it.
func resolve(ctx context.Context, path string) (string, error) {
	root := chatmodel.GetWorkDir(ctx)
	if root == "" {
		root = "."
	}
	if path == "" {
		path = "."
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, path)
	}
	full = filepath.Clean(full)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve working directory")
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve path")
	}
	if absFull != absRoot && !strings.HasPrefix(absFull, absRoot+string(filepath.Separator)) {
		return "", errors.Errorf("path escapes working directory: %s", path)
	}
	return absFull, nil
}

type baseTool struct {
	name        string
	description string
	funcParams  any
}

func (t *baseTool) Name() string        { return t.name }
func (t *baseTool) Description() string { return t.description }
func (t *baseTool) Parameters() any     { return t.funcParams }

func newBase(name, description string, reqType reflect.Type) (baseTool, error) {
	sc, err := schema.New(reqType)
	if err != nil {
		return baseTool{}, errors.Wrap(err, "failed to create schema")
	}
	return baseTool{
		name:        name,
		description: description,
		funcParams:  sc.Parameters,
	}, nil
}

// ReadTool reads a file relative to the working directory.
type ReadTool struct {
	baseTool
}

var _ tools.ITool = (*ReadTool)(nil)

func NewReadTool() (*ReadTool, error) {
	base, err := newBase(ReadToolName,
		"Reads a text file from the session working directory.",
		reflect.TypeOf(ReadRequest{}))
	if err != nil {
		return nil, err
	}
	return &ReadTool{baseTool: base}, nil
}

func (t *ReadTool) Call(ctx context.Context, input string) (*tools.Output, error) {
	var req ReadRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return tools.ErrorOutput(fmt.Sprintf("invalid arguments: %s", err.Error())), nil
	}
	if req.Path == "" {
		return tools.ErrorOutput("path is required"), nil
	}

	full, err := resolve(ctx, req.Path)
	if err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}
	bs, err := os.ReadFile(full)
	if err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}
	if len(bs) > MaxReadSize {
		bs = bs[:MaxReadSize]
	}
	return tools.TextOutput(string(bs)), nil
}

// WriteTool writes a file relative to the working directory.
type WriteTool struct {
	baseTool
}

var _ tools.ITool = (*WriteTool)(nil)

func NewWriteTool() (*WriteTool, error) {
	base, err := newBase(WriteToolName,
		"Writes a text file in the session working directory, creating parent directories as needed.",
		reflect.TypeOf(WriteRequest{}))
	if err != nil {
		return nil, err
	}
	return &WriteTool{baseTool: base}, nil
}

func (t *WriteTool) Call(ctx context.Context, input string) (*tools.Output, error) {
	var req WriteRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return tools.ErrorOutput(fmt.Sprintf("invalid arguments: %s", err.Error())), nil
	}
	if req.Path == "" {
		return tools.ErrorOutput("path is required"), nil
	}

	full, err := resolve(ctx, req.Path)
	if err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}
	return tools.TextOutput(fmt.Sprintf("wrote %d bytes to %s", len(req.Content), req.Path)), nil
}

// ListTool lists a directory relative to the working directory.
type ListTool struct {
	baseTool
}

var _ tools.ITool = (*ListTool)(nil)

func NewListTool() (*ListTool, error) {
	base, err := newBase(ListToolName,
		"Lists files and directories in the session working directory.",
		reflect.TypeOf(ListRequest{}))
	if err != nil {
		return nil, err
	}
	return &ListTool{baseTool: base}, nil
}

func (t *ListTool) Call(ctx context.Context, input string) (*tools.Output, error) {
	var req ListRequest
	if input != "" {
		if err := json.Unmarshal([]byte(input), &req); err != nil {
			return tools.ErrorOutput(fmt.Sprintf("invalid arguments: %s", err.Error())), nil
		}
	}

	full, err := resolve(ctx, req.Path)
	if err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return tools.ErrorOutput(err.Error()), nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return tools.TextOutput(strings.Join(names, "\n")), nil
}

// NewAll returns the full set of file tools.
func NewAll() ([]tools.ITool, error) {
	read, err := NewReadTool()
	if err != nil {
		return nil, err
	}
	write, err := NewWriteTool()
	if err != nil {
		return nil, err
	}
	list, err := NewListTool()
	if err != nil {
		return nil, err
	}
	return []tools.ITool{read, write, list}, nil
}
