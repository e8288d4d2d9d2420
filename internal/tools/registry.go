package tools

import (
	"github.com/coreagent/core/internal/schema"
)

// Tool is the contract every registered tool satisfies.
type Tool = schema.Tool

// ToolName is the canonical name of a built-in tool.
type ToolName string

const (
	ToolReadFile      ToolName = "read_file"
	ToolWriteFile     ToolName = "write_file"
	ToolEditFile      ToolName = "edit_file"
	ToolListDirectory ToolName = "list_directory"
	ToolCopyFile      ToolName = "copy_file"
	ToolMoveFile      ToolName = "move_file"
	ToolFileDelete    ToolName = "file_delete"
	ToolFileSearch    ToolName = "file_search"

	ToolShell ToolName = "shell"

	ToolWebSearch       ToolName = "web_search"
	ToolFetchPage       ToolName = "fetch_page"
	ToolSaveFileFromURL ToolName = "save_file_from_url"

	ToolNavigate          ToolName = "navigate_browser"
	ToolCurrentPage       ToolName = "current_webpage"
	ToolPreviousPage      ToolName = "previous_webpage"
	ToolGoBack            ToolName = "go_back"
	ToolReloadPage        ToolName = "reload_page"
	ToolClickElement      ToolName = "click_element"
	ToolTypeInput         ToolName = "type_input"
	ToolHoverElement      ToolName = "hover_element"
	ToolScrollPage        ToolName = "scroll_page"
	ToolExtractText       ToolName = "extract_text"
	ToolExtractHyperlinks ToolName = "extract_hyperlinks"
	ToolGetElements       ToolName = "get_elements"
	ToolGetHTMLSource     ToolName = "get_html_source"
	ToolEvaluateJS        ToolName = "evaluate_javascript"
	ToolTakeScreenshot    ToolName = "take_screenshot"
	ToolDownloadViaClick  ToolName = "download_file_via_click"

	ToolWindowManager     ToolName = "window_manager"
	ToolOpenAppOrFolder   ToolName = "open_app_or_folder"
	ToolGlobalKeyboard    ToolName = "global_keyboard"
	ToolDesktopScreenshot ToolName = "desktop_screenshot"

	ToolSaveMemory   ToolName = "save_memory"
	ToolRecallMemory ToolName = "recall_memory"
)

// Registry holds a set of named tools and exposes them for execution.
type Registry struct {
	tools map[string]Tool
}

// GetTool returns the tool with the given name, or nil.
func (r *Registry) GetTool(name ToolName) Tool {
	return r.tools[string(name)]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// AllTools returns a fresh ToolList holding every registered tool.
func (r *Registry) AllTools() *ToolList {
	list := NewToolList()
	for _, t := range r.tools {
		list.Add(t)
	}
	return list
}
