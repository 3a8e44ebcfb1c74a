// Package transforms holds the built-in processing functions that raw
// dataset definitions can reference by function_id.
package transforms

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"datafold/pkg/core"
)

var ErrBadArgument = errors.New("bad transform argument")

const (
	DefaultID = "default"
	CSVID     = "csv"
	LinesID   = "lines"
)

const defaultDoc = `List the unpacked files.

Returns the sorted list of file paths relative to the unpack directory as data
and no target.`

const csvDoc = `Parse a delimited text file.

Arguments:
  file       path relative to the unpack directory (first positional argument)
  header     first row holds column names (default true)
  target     column moved out of the rows into the target payload
  delimiter  single character separator (default ",")`

const linesDoc = `Read a text file as a list of lines.

Arguments:
  file        path relative to the unpack directory (first positional argument)
  skip_empty  drop blank lines (default false)`

// Register 把所有内置 transform 注册到 reg
func Register(reg *core.Registry) error {
	for _, t := range []core.Transform{
		{ID: DefaultID, Func: Default, Doc: defaultDoc},
		{ID: CSVID, Func: CSV, Doc: csvDoc},
		{ID: LinesID, Func: Lines, Doc: linesDoc},
	} {
		if err := reg.Register(t.ID, t.Func, t.Doc); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry 返回一个已注册内置 transform 的 Registry
func NewRegistry() *core.Registry {
	reg := core.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}

// Default 列出解包目录中的全部文件
func Default(ctx context.Context, call core.Call) (*core.Output, error) {
	var files []string
	if call.UnpackDir != "" {
		err := filepath.WalkDir(call.UnpackDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(call.UnpackDir, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
	}
	slices.Sort(files)
	return &core.Output{Data: files, Metadata: call.Metadata}, nil
}

// CSV 解析分隔符文本，data 是行 ([][]string)，target 是指定列
func CSV(ctx context.Context, call core.Call) (*core.Output, error) {
	path, err := fileArg(call)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	header, err := boolKwarg(call, "header", true)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	targetCol, _ := call.Kwargs["target"].(string)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if d, ok := call.Kwargs["delimiter"].(string); ok && d != "" {
		r.Comma = []rune(d)[0]
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}

	meta := maps.Clone(call.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}

	var columns []string
	if header && len(rows) > 0 {
		columns, rows = rows[0], rows[1:]
	}

	idx := -1
	if targetCol != "" {
		if !header {
			return nil, fmt.Errorf("csv: %w: target requires header=true", ErrBadArgument)
		}
		idx = slices.Index(columns, targetCol)
		if idx < 0 {
			return nil, fmt.Errorf("csv: %w: target column %q not found", ErrBadArgument, targetCol)
		}
	}

	out := &core.Output{Metadata: meta}
	if idx < 0 {
		out.Data = rows
	} else {
		data := make([][]string, 0, len(rows))
		target := make([]string, 0, len(rows))
		for _, row := range rows {
			if idx >= len(row) {
				return nil, fmt.Errorf("csv: %w: short row %v", ErrBadArgument, row)
			}
			target = append(target, row[idx])
			data = append(data, slices.Delete(slices.Clone(row), idx, idx+1))
		}
		out.Data, out.Target = data, target
		columns = slices.Delete(slices.Clone(columns), idx, idx+1)
	}
	if columns != nil {
		meta["columns"] = columns
	}
	return out, nil
}

// Lines 按行读取文本文件
func Lines(ctx context.Context, call core.Call) (*core.Output, error) {
	path, err := fileArg(call)
	if err != nil {
		return nil, fmt.Errorf("lines: %w", err)
	}
	skipEmpty, err := boolKwarg(call, "skip_empty", false)
	if err != nil {
		return nil, fmt.Errorf("lines: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lines: %w", err)
	}
	defer f.Close()

	lines := []string{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if skipEmpty && strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lines: %s: %w", path, err)
	}
	return &core.Output{Data: lines, Metadata: call.Metadata}, nil
}

// fileArg 取 kwargs["file"] 或第一个位置参数，并解析到解包目录下
func fileArg(call core.Call) (string, error) {
	var name string
	if s, ok := call.Kwargs["file"].(string); ok {
		name = s
	} else if len(call.Args) > 0 {
		s, ok := call.Args[0].(string)
		if !ok {
			return "", fmt.Errorf("%w: file must be a string, got %T", ErrBadArgument, call.Args[0])
		}
		name = s
	}
	if name == "" {
		return "", fmt.Errorf("%w: file is required", ErrBadArgument)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: file %q must be relative to the unpack directory", ErrBadArgument, name)
	}
	return filepath.Join(call.UnpackDir, clean), nil
}

func boolKwarg(call core.Call, key string, def bool) (bool, error) {
	v, ok := call.Kwargs[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a bool, got %T", ErrBadArgument, key, v)
	}
	return b, nil
}
