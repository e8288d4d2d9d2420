package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// resolvePath resolves a file path against workspace (if relative) and enforces
// directory restriction if allowedDir is non-empty.
func resolvePath(path, workspace, allowedDir string) (string, error) {
	p := path
	if !filepath.IsAbs(p) && workspace != "" {
		p = filepath.Join(workspace, p)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Path may not exist yet (writes, copy targets).
		resolved = filepath.Clean(p)
	}
	if allowedDir != "" {
		root := filepath.Clean(allowedDir)
		if rootResolved, err := filepath.EvalSymlinks(root); err == nil {
			root = rootResolved
		}
		if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
			return "", fmt.Errorf("path %s is outside allowed directory %s", path, allowedDir)
		}
	}
	return resolved, nil
}

// fsBase carries the path policy shared by every filesystem tool.
type fsBase struct {
	workspace  string
	allowedDir string
}

func (b fsBase) resolve(path string) (string, error) {
	return resolvePath(path, b.workspace, b.allowedDir)
}

// NewFilesystemTools returns the full filesystem tool set rooted at workspace.
// When restrict is set, paths outside workspace are rejected.
func NewFilesystemTools(workspace string, restrict bool) []Tool {
	allowed := ""
	if restrict {
		allowed = workspace
	}
	return []Tool{
		NewReadFileTool(workspace, allowed),
		NewWriteFileTool(workspace, allowed),
		NewEditFileTool(workspace, allowed),
		NewListDirectoryTool(workspace, allowed),
		NewCopyFileTool(workspace, allowed),
		NewMoveFileTool(workspace, allowed),
		NewFileDeleteTool(workspace, allowed),
		NewFileSearchTool(workspace, allowed),
	}
}

// ─── read_file ───────────────────────────────────────────────────────────────

type readFileInput struct {
	Path string `json:"path" jsonschema_description:"The file path to read"`
}

var readFileSchema = paramsSchema[readFileInput]()

// ReadFileTool reads a file and returns its contents.
type ReadFileTool struct{ fsBase }

func NewReadFileTool(workspace, allowedDir string) *ReadFileTool {
	return &ReadFileTool{fsBase{workspace, allowedDir}}
}

func (t *ReadFileTool) Name() string                { return string(ToolReadFile) }
func (t *ReadFileTool) Description() string         { return "Read the contents of a file at the given path." }
func (t *ReadFileTool) Parameters() json.RawMessage { return readFileSchema }

func (t *ReadFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[readFileInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.Path == "" {
		return "Error: path is required", nil
	}
	fp, err := t.resolve(in.Path)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	info, err := os.Stat(fp)
	if err != nil {
		return fmt.Sprintf("Error: no such file or directory: %s", in.Path), nil
	}
	if !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: Not a file: %s", in.Path), nil
	}
	data, err := os.ReadFile(fp)
	if err != nil {
		return fmt.Sprintf("Error reading file: %s", err), nil
	}
	return string(data), nil
}

// ─── write_file ──────────────────────────────────────────────────────────────

type writeFileInput struct {
	Path   string `json:"path" jsonschema_description:"The file path to write to"`
	Text   string `json:"text" jsonschema_description:"The text to write"`
	Append bool   `json:"append,omitempty" jsonschema_description:"Append to the file instead of overwriting it"`
}

var writeFileSchema = paramsSchema[writeFileInput]()

// WriteFileTool writes text to a file, creating parent directories as needed.
type WriteFileTool struct{ fsBase }

func NewWriteFileTool(workspace, allowedDir string) *WriteFileTool {
	return &WriteFileTool{fsBase{workspace, allowedDir}}
}

func (t *WriteFileTool) Name() string { return string(ToolWriteFile) }
func (t *WriteFileTool) Description() string {
	return "Write text to a file at the given path. Creates parent directories if needed."
}
func (t *WriteFileTool) Parameters() json.RawMessage { return writeFileSchema }

func (t *WriteFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[writeFileInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.Path == "" {
		return "Error: path is required", nil
	}
	fp, err := t.resolve(in.Path)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return fmt.Sprintf("Error creating directories: %s", err), nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if in.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(fp, flags, 0o644)
	if err != nil {
		return fmt.Sprintf("Error writing file: %s", err), nil
	}
	defer f.Close()
	if _, err := f.WriteString(in.Text); err != nil {
		return fmt.Sprintf("Error writing file: %s", err), nil
	}
	return fmt.Sprintf("File written successfully to %s.", in.Path), nil
}

// ─── edit_file ───────────────────────────────────────────────────────────────

type editFileInput struct {
	Path    string `json:"path" jsonschema_description:"The file path to edit"`
	OldText string `json:"old_text" jsonschema_description:"The exact text to find and replace"`
	NewText string `json:"new_text" jsonschema_description:"The text to replace with"`
}

var editFileSchema = paramsSchema[editFileInput]()

// EditFileTool replaces old_text with new_text in a file. old_text must occur
// exactly once.
type EditFileTool struct{ fsBase }

func NewEditFileTool(workspace, allowedDir string) *EditFileTool {
	return &EditFileTool{fsBase{workspace, allowedDir}}
}

func (t *EditFileTool) Name() string { return string(ToolEditFile) }
func (t *EditFileTool) Description() string {
	return "Edit a file by replacing old_text with new_text. The old_text must exist exactly once in the file."
}
func (t *EditFileTool) Parameters() json.RawMessage { return editFileSchema }

func (t *EditFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[editFileInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.Path == "" {
		return "Error: path is required", nil
	}
	if in.OldText == "" {
		return "Error: old_text is required", nil
	}

	fp, err := t.resolve(in.Path)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	data, err := os.ReadFile(fp)
	if err != nil {
		return fmt.Sprintf("Error: no such file or directory: %s", in.Path), nil
	}
	content := string(data)

	switch n := strings.Count(content, in.OldText); {
	case n == 0:
		return editNotFoundMessage(in.OldText, content, in.Path), nil
	case n > 1:
		return fmt.Sprintf("Warning: old_text appears %d times. Please provide more context to make it unique.", n), nil
	}

	updated := strings.Replace(content, in.OldText, in.NewText, 1)
	if err := os.WriteFile(fp, []byte(updated), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %s", err), nil
	}
	return fmt.Sprintf("Successfully edited %s", in.Path), nil
}

// editNotFoundMessage points the model at the closest block of lines when
// old_text does not match verbatim.
func editNotFoundMessage(oldText, content, path string) string {
	want := strings.Split(oldText, "\n")
	lines := strings.Split(content, "\n")
	window := len(want)
	if window > len(lines) {
		window = len(lines)
	}

	best, bestAt := 0.0, 0
	for i := 0; i+window <= len(lines); i++ {
		if r := overlapRatio(want, lines[i:i+window]); r > best {
			best, bestAt = r, i
		}
	}

	if best <= 0.5 {
		return fmt.Sprintf("Error: old_text not found in %s. No similar text found. Verify the file content.", path)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: old_text not found in %s.\nBest match (%.0f%% similar) at line %d:\n", path, best*100, bestAt+1)
	fmt.Fprintf(&sb, "--- old_text (provided)\n+++ %s (actual, line %d)\n", path, bestAt+1)
	got := lines[bestAt : bestAt+window]
	for i := 0; i < max(len(want), len(got)); i++ {
		if i < len(want) {
			sb.WriteString("- " + want[i] + "\n")
		}
		if i < len(got) {
			sb.WriteString("+ " + got[i] + "\n")
		}
	}
	return sb.String()
}

// overlapRatio is a character-multiset similarity in [0, 1].
func overlapRatio(a, b []string) float64 {
	sa, sb := strings.Join(a, "\n"), strings.Join(b, "\n")
	if len(sa)+len(sb) == 0 {
		return 1
	}
	freq := make(map[byte]int, 64)
	for i := 0; i < len(sa); i++ {
		freq[sa[i]]++
	}
	common := 0
	for i := 0; i < len(sb); i++ {
		if freq[sb[i]] > 0 {
			common++
			freq[sb[i]]--
		}
	}
	return 2 * float64(common) / float64(len(sa)+len(sb))
}

// ─── list_directory ──────────────────────────────────────────────────────────

type listDirectoryInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Directory to list (default: workspace root)"`
}

var listDirectorySchema = paramsSchema[listDirectoryInput]()

// ListDirectoryTool lists directory contents, directories marked with [D].
type ListDirectoryTool struct{ fsBase }

func NewListDirectoryTool(workspace, allowedDir string) *ListDirectoryTool {
	return &ListDirectoryTool{fsBase{workspace, allowedDir}}
}

func (t *ListDirectoryTool) Name() string                { return string(ToolListDirectory) }
func (t *ListDirectoryTool) Description() string         { return "List the files and folders in a directory." }
func (t *ListDirectoryTool) Parameters() json.RawMessage { return listDirectorySchema }

func (t *ListDirectoryTool) Execute(_ context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[listDirectoryInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.Path == "" {
		in.Path = "."
	}
	dp, err := t.resolve(in.Path)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	info, err := os.Stat(dp)
	if err != nil {
		return fmt.Sprintf("Error: no such file or directory: %s", in.Path), nil
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: Not a directory: %s", in.Path), nil
	}
	entries, err := os.ReadDir(dp)
	if err != nil {
		return fmt.Sprintf("Error listing directory: %s", err), nil
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No files found in directory %s", in.Path), nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		prefix := "[F] "
		if e.IsDir() {
			prefix = "[D] "
		}
		lines = append(lines, prefix+e.Name())
	}
	return strings.Join(lines, "\n"), nil
}

// ─── copy_file / move_file ───────────────────────────────────────────────────

type transferInput struct {
	SourcePath      string `json:"source_path" jsonschema_description:"Path of the file to copy or move"`
	DestinationPath string `json:"destination_path" jsonschema_description:"Path to copy or move the file to"`
}

var transferSchema = paramsSchema[transferInput]()

func (b fsBase) transferPaths(params map[string]any) (src, dst string, errText string) {
	in, err := decodeArgs[transferInput](params)
	if err != nil {
		return "", "", "Error: " + err.Error()
	}
	if in.SourcePath == "" || in.DestinationPath == "" {
		return "", "", "Error: source_path and destination_path are required"
	}
	if src, err = b.resolve(in.SourcePath); err != nil {
		return "", "", "Error: " + err.Error()
	}
	if dst, err = b.resolve(in.DestinationPath); err != nil {
		return "", "", "Error: " + err.Error()
	}
	if _, err := os.Stat(src); err != nil {
		return "", "", fmt.Sprintf("Error: no such file or directory: %s", in.SourcePath)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", "", fmt.Sprintf("Error creating directories: %s", err)
	}
	return src, dst, ""
}

// CopyFileTool copies a regular file.
type CopyFileTool struct{ fsBase }

func NewCopyFileTool(workspace, allowedDir string) *CopyFileTool {
	return &CopyFileTool{fsBase{workspace, allowedDir}}
}

func (t *CopyFileTool) Name() string                { return string(ToolCopyFile) }
func (t *CopyFileTool) Description() string         { return "Create a copy of a file in a specified location." }
func (t *CopyFileTool) Parameters() json.RawMessage { return transferSchema }

func (t *CopyFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	src, dst, errText := t.transferPaths(params)
	if errText != "" {
		return errText, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "Error: " + err.Error(), nil
	}
	return fmt.Sprintf("File copied successfully from %s to %s.", params["source_path"], params["destination_path"]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// MoveFileTool moves or renames a file.
type MoveFileTool struct{ fsBase }

func NewMoveFileTool(workspace, allowedDir string) *MoveFileTool {
	return &MoveFileTool{fsBase{workspace, allowedDir}}
}

func (t *MoveFileTool) Name() string { return string(ToolMoveFile) }
func (t *MoveFileTool) Description() string {
	return "Move or rename a file from one location to another."
}
func (t *MoveFileTool) Parameters() json.RawMessage { return transferSchema }

func (t *MoveFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	src, dst, errText := t.transferPaths(params)
	if errText != "" {
		return errText, nil
	}
	if err := os.Rename(src, dst); err != nil {
		// Cross-device renames fail; fall back to copy and delete.
		if cerr := copyFile(src, dst); cerr != nil {
			return "Error: " + err.Error(), nil
		}
		if rerr := os.Remove(src); rerr != nil {
			return "Error: " + rerr.Error(), nil
		}
	}
	return fmt.Sprintf("File moved successfully from %s to %s.", params["source_path"], params["destination_path"]), nil
}

// ─── file_delete ─────────────────────────────────────────────────────────────

type fileDeleteInput struct {
	FilePath string `json:"file_path" jsonschema_description:"Path of the file to delete"`
}

var fileDeleteSchema = paramsSchema[fileDeleteInput]()

// FileDeleteTool deletes a single file. Directories are refused.
type FileDeleteTool struct{ fsBase }

func NewFileDeleteTool(workspace, allowedDir string) *FileDeleteTool {
	return &FileDeleteTool{fsBase{workspace, allowedDir}}
}

func (t *FileDeleteTool) Name() string                { return string(ToolFileDelete) }
func (t *FileDeleteTool) Description() string         { return "Delete a file." }
func (t *FileDeleteTool) Parameters() json.RawMessage { return fileDeleteSchema }

func (t *FileDeleteTool) Execute(_ context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[fileDeleteInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.FilePath == "" {
		return "Error: file_path is required", nil
	}
	fp, err := t.resolve(in.FilePath)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	info, err := os.Stat(fp)
	if err != nil {
		return fmt.Sprintf("Error: no such file or directory: %s", in.FilePath), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: %s is a directory", in.FilePath), nil
	}
	if err := os.Remove(fp); err != nil {
		return "Error: " + err.Error(), nil
	}
	return fmt.Sprintf("File deleted successfully: %s.", in.FilePath), nil
}

// ─── file_search ─────────────────────────────────────────────────────────────

type fileSearchInput struct {
	Pattern string `json:"pattern" jsonschema_description:"Shell-style name pattern, e.g. *.txt"`
	DirPath string `json:"dir_path,omitempty" jsonschema_description:"Directory to search in (default: workspace root)"`
}

var fileSearchSchema = paramsSchema[fileSearchInput]()

// FileSearchTool walks a directory tree and returns files whose base name
// matches a glob pattern.
type FileSearchTool struct{ fsBase }

func NewFileSearchTool(workspace, allowedDir string) *FileSearchTool {
	return &FileSearchTool{fsBase{workspace, allowedDir}}
}

func (t *FileSearchTool) Name() string { return string(ToolFileSearch) }
func (t *FileSearchTool) Description() string {
	return "Recursively search for files in a subdirectory that match the name pattern."
}
func (t *FileSearchTool) Parameters() json.RawMessage { return fileSearchSchema }

func (t *FileSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[fileSearchInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.Pattern == "" {
		return "Error: pattern is required", nil
	}
	if _, err := filepath.Match(in.Pattern, ""); err != nil {
		return fmt.Sprintf("Error: invalid pattern %q", in.Pattern), nil
	}
	if in.DirPath == "" {
		in.DirPath = "."
	}
	root, err := t.resolve(in.DirPath)
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(in.Pattern, d.Name()); ok {
			rel, rerr := filepath.Rel(root, p)
			if rerr != nil {
				rel = p
			}
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return "Error: " + walkErr.Error(), nil
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files found for pattern %s in directory %s", in.Pattern, in.DirPath), nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n"), nil
}
