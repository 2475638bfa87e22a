// Package uia is a thin view over the operating system's accessibility tree.
//
// It exposes just enough of UI Automation to locate a top-level window by
// class name, walk its control tree, read element names and control types,
// focus an element and inject navigation keys. The Windows backend talks to
// the UIAutomationCore COM server; other platforms return [ErrUnsupported]
// from every entry point.
package uia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentinel errors returned by the package.
var (
	// ErrNotFound is returned when a window or control could not be located.
	ErrNotFound = errors.New("uia: element not found")

	// ErrUnsupported is returned on platforms without a UI Automation backend.
	ErrUnsupported = errors.New("uia: not supported on this platform")

	// ErrElementGone is returned when an element's underlying UI object no
	// longer exists, typically because its window was closed.
	ErrElementGone = errors.New("uia: element no longer available")
)

// ControlType identifies the kind of an accessibility element. Values match
// the UI Automation control type identifiers.
type ControlType int

// Control types used by meetnav. Unknown IDs render as "ControlType(<id>)".
const (
	Button    ControlType = 50000
	Edit      ControlType = 50004
	ListItem  ControlType = 50007
	List      ControlType = 50008
	ScrollBar ControlType = 50014
	Text      ControlType = 50020
	Custom    ControlType = 50025
	Group     ControlType = 50026
	Document  ControlType = 50030
	Window    ControlType = 50032
	Pane      ControlType = 50033
)

var controlTypeNames = map[ControlType]string{
	Button:    "Button",
	Edit:      "Edit",
	ListItem:  "ListItem",
	List:      "List",
	ScrollBar: "ScrollBar",
	Text:      "Text",
	Custom:    "Custom",
	Group:     "Group",
	Document:  "Document",
	Window:    "Window",
	Pane:      "Pane",
}

// String returns the control type name, e.g. "ListItem".
func (c ControlType) String() string {
	if n, ok := controlTypeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ControlType(%d)", int(c))
}

// Element is a node in the accessibility tree.
//
// Implementations hold OS resources; callers release elements they no longer
// need. Releasing an element does not release its children.
type Element interface {
	// Name returns the element's accessible name. For caption list items this
	// is "<speaker> <HH:MM:SS>\n<text>".
	Name() (string, error)

	// ControlType returns the element's control type.
	ControlType() (ControlType, error)

	// ClassName returns the element's window class name, if any.
	ClassName() (string, error)

	// Children returns the element's direct children in tree order.
	Children() ([]Element, error)

	// SetFocus moves keyboard focus to the element.
	SetFocus() error

	// Release frees the OS resources held by the element.
	Release()
}

// Finder locates top-level windows.
type Finder interface {
	// FindWindow returns the first visible top-level window with the given
	// class name, or an error wrapping [ErrNotFound].
	FindWindow(ctx context.Context, className string) (Element, error)
}

// FindFirst performs a depth-first search of the tree rooted at root and
// returns the first element of control type ct, root included. Elements
// visited but not returned are released. Errors reading a single subtree are
// skipped; ErrNotFound is returned when no element matches.
func FindFirst(root Element, ct ControlType) (Element, error) {
	if root == nil {
		return nil, ErrNotFound
	}
	if t, err := root.ControlType(); err == nil && t == ct {
		return root, nil
	}
	children, err := root.Children()
	if err != nil {
		if errors.Is(err, ErrElementGone) {
			return nil, err
		}
		return nil, fmt.Errorf("uia: find %s: %w", ct, ErrNotFound)
	}
	var found Element
	for _, child := range children {
		if found != nil {
			child.Release()
			continue
		}
		el, err := FindFirst(child, ct)
		if err == nil {
			found = el
			if el != child {
				child.Release()
			}
			continue
		}
		child.Release()
		if errors.Is(err, ErrElementGone) {
			return nil, err
		}
	}
	if found == nil {
		return nil, fmt.Errorf("uia: find %s: %w", ct, ErrNotFound)
	}
	return found, nil
}

// Dump writes an indented description of the tree rooted at root to w, one
// block per element. maxDepth limits the recursion; a value <= 0 means no
// limit. Errors reading an element are written inline and do not stop the
// walk; only write errors are returned.
func Dump(w io.Writer, root Element, maxDepth int) error {
	return dump(w, root, 0, maxDepth)
}

func dump(w io.Writer, el Element, level, maxDepth int) error {
	indent := strings.Repeat("  ", level)

	ct, err := el.ControlType()
	typeName := ct.String()
	if err != nil {
		typeName = "<" + err.Error() + ">"
	}
	name, err := el.Name()
	if err != nil {
		name = "<" + err.Error() + ">"
	}
	class, err := el.ClassName()
	if err != nil {
		class = "<" + err.Error() + ">"
	}

	if _, err := fmt.Fprintf(w, "%sType: %s\n%sName: %q\n%sClass: %s\n%s---\n",
		indent, typeName, indent, name, indent, class, indent); err != nil {
		return err
	}

	if maxDepth > 0 && level+1 >= maxDepth {
		return nil
	}
	children, err := el.Children()
	if err != nil {
		_, werr := fmt.Fprintf(w, "%s  Error: %v\n", indent, err)
		return werr
	}
	for _, child := range children {
		err := dump(w, child, level+1, maxDepth)
		child.Release()
		if err != nil {
			return err
		}
	}
	return nil
}
