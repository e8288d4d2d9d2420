package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/coreagent/core/internal/desktop"
)

const desktopScreenshotFile = "desktop_view.png"

// Desktop is the host-control surface the desktop tools need.
// *desktop.Controller implements it.
type Desktop interface {
	Window(ctx context.Context, title string, action desktop.Action) (string, error)
	Open(ctx context.Context, target string) error
	TypeText(ctx context.Context, text string) error
	Screenshot(ctx context.Context, path string) error
}

var _ Desktop = (*desktop.Controller)(nil)

type windowInput struct {
	AppName string `json:"app_name" jsonschema_description:"Partial title of the window (e.g. 'Chrome', 'Notepad')"`
	Action  string `json:"action" jsonschema:"enum=minimize,enum=maximize,enum=restore,enum=close,enum=focus" jsonschema_description:"What to do with the window"`
}

type openInput struct {
	Path string `json:"path" jsonschema_description:"Folder path or application name"`
}

type keyboardInput struct {
	Text string `json:"text" jsonschema_description:"Text to type"`
}

// NewDesktopTools returns the desktop tools bound to d. Screenshots are
// written under workDir.
func NewDesktopTools(d Desktop, workDir string) []Tool {
	return []Tool{
		&actionTool{
			name:        ToolWindowManager,
			description: "Control desktop windows. Minimize, maximize, close, or bring apps to the front.",
			params:      paramsSchema[windowInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[windowInput](args)
				if err != nil {
					return "", err
				}
				action, err := desktop.ParseAction(in.Action)
				if err != nil {
					return "Error: Unknown action.", nil
				}
				title, err := d.Window(ctx, in.AppName, action)
				if errors.Is(err, desktop.ErrNoWindow) {
					return fmt.Sprintf("Error: No open window found matching '%s'.", in.AppName), nil
				}
				if err != nil {
					return fmt.Sprintf("Error managing window: %v", err), nil
				}
				return fmt.Sprintf("Success: %s performed on '%s'.", action, title), nil
			},
		},
		&actionTool{
			name:        ToolOpenAppOrFolder,
			description: "Visually open a folder in the file manager or launch an application.",
			params:      paramsSchema[openInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[openInput](args)
				if err != nil {
					return "", err
				}
				if err := requireField("path", in.Path); err != nil {
					return "", err
				}
				if err := d.Open(ctx, in.Path); err != nil {
					return fmt.Sprintf("Error opening: %v", err), nil
				}
				return fmt.Sprintf("Success: Opened '%s' on the desktop.", in.Path), nil
			},
		},
		&actionTool{
			name:        ToolGlobalKeyboard,
			description: "Type text into whatever window is currently focused on the desktop, then press Enter.",
			params:      paramsSchema[keyboardInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[keyboardInput](args)
				if err != nil {
					return "", err
				}
				if err := d.TypeText(ctx, in.Text); err != nil {
					return fmt.Sprintf("Error typing: %v", err), nil
				}
				return fmt.Sprintf("Success: Typed '%s'.", in.Text), nil
			},
		},
		&actionTool{
			name:        ToolDesktopScreenshot,
			description: "Take a screenshot of the entire desktop screen.",
			params:      paramsSchema[noInput](),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				path := filepath.Join(workDir, desktopScreenshotFile)
				if err := d.Screenshot(ctx, path); err != nil {
					return fmt.Sprintf("Error taking screenshot: %v", err), nil
				}
				return "Success: Desktop screenshot saved to " + path, nil
			},
		},
	}
}
