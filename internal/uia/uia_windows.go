//go:build windows

package uia

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	oleaut32 = windows.NewLazySystemDLL("oleaut32.dll")

	procEnumWindows     = user32.NewProc("EnumWindows")
	procGetClassNameW   = user32.NewProc("GetClassNameW")
	procIsWindowVisible = user32.NewProc("IsWindowVisible")
	procSysFreeString   = oleaut32.NewProc("SysFreeString")
)

var (
	clsidCUIAutomation = ole.NewGUID("{FF48DBA4-60EF-4201-AA87-54103EEF594E}")
	iidIUIAutomation   = ole.NewGUID("{30CBE57D-D9D0-452A-AB13-7AC5AC4825EE}")
)

// Vtable slots of the UI Automation interfaces, counted from IUnknown.
const (
	slotAutomationElementFromHandle = 6
	slotAutomationCreateTrueCond    = 21

	slotElementSetFocus        = 3
	slotElementFindAll         = 6
	slotElementControlType     = 21
	slotElementName            = 23
	slotElementClassName       = 30
	slotElementArrayLength     = 3
	slotElementArrayGetElement = 4

	treeScopeChildren = 0x2

	hresultElementNotAvailable = 0x80040201
)

// SystemFinder is the Windows [Finder] backed by the UIAutomationCore COM server.
//
// COM is initialised lazily on the first call. Callers must invoke all
// methods, and all methods of elements it returns, from one goroutine locked
// to its OS thread with runtime.LockOSThread.
type SystemFinder struct {
	once sync.Once
	err  error
	auto *ole.IUnknown
	cond *ole.IUnknown
}

var _ Finder = (*SystemFinder)(nil)

// NewFinder returns the platform's window finder.
func NewFinder() *SystemFinder {
	return &SystemFinder{}
}

func (f *SystemFinder) init() error {
	f.once.Do(func() {
		if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
			// S_FALSE: already initialised on this thread.
			if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != 1 {
				f.err = fmt.Errorf("uia: initialise COM: %w", err)
				return
			}
		}
		unk, err := ole.CreateInstance(clsidCUIAutomation, iidIUIAutomation)
		if err != nil {
			f.err = fmt.Errorf("uia: create automation: %w", err)
			return
		}
		f.auto = unk

		var cond *ole.IUnknown
		if err := comCall(unk, slotAutomationCreateTrueCond, uintptr(unsafe.Pointer(&cond))); err != nil {
			f.err = fmt.Errorf("uia: create condition: %w", err)
			return
		}
		f.cond = cond
	})
	return f.err
}

// FindWindow implements [Finder]. It enumerates visible top-level windows and
// returns the first whose class name equals className.
func (f *SystemFinder) FindWindow(ctx context.Context, className string) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.init(); err != nil {
		return nil, err
	}

	hwnd := findWindowByClass(className)
	if hwnd == 0 {
		return nil, fmt.Errorf("uia: window class %q: %w", className, ErrNotFound)
	}

	var raw *ole.IUnknown
	if err := comCall(f.auto, slotAutomationElementFromHandle, hwnd, uintptr(unsafe.Pointer(&raw))); err != nil {
		return nil, fmt.Errorf("uia: element from handle: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("uia: window class %q: %w", className, ErrNotFound)
	}
	return &element{raw: raw, cond: f.cond}, nil
}

// Close releases the automation object.
func (f *SystemFinder) Close() error {
	if f.cond != nil {
		f.cond.Release()
		f.cond = nil
	}
	if f.auto != nil {
		f.auto.Release()
		f.auto = nil
	}
	return nil
}

func findWindowByClass(className string) uintptr {
	var found uintptr
	cb := syscall.NewCallback(func(hwnd, _ uintptr) uintptr {
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
			return 1
		}
		buf := make([]uint16, 256)
		n, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if n == 0 {
			return 1
		}
		if windows.UTF16ToString(buf[:n]) == className {
			found = hwnd
			return 0
		}
		return 1
	})
	procEnumWindows.Call(cb, 0)
	return found
}

// element wraps an IUIAutomationElement.
type element struct {
	raw  *ole.IUnknown
	cond *ole.IUnknown
}

func (e *element) Name() (string, error) {
	return e.bstrProperty(slotElementName)
}

func (e *element) ClassName() (string, error) {
	return e.bstrProperty(slotElementClassName)
}

func (e *element) ControlType() (ControlType, error) {
	var id int32
	if err := comCall(e.raw, slotElementControlType, uintptr(unsafe.Pointer(&id))); err != nil {
		return 0, fmt.Errorf("uia: control type: %w", err)
	}
	return ControlType(id), nil
}

func (e *element) Children() ([]Element, error) {
	var arr *ole.IUnknown
	if err := comCall(e.raw, slotElementFindAll, treeScopeChildren, uintptr(unsafe.Pointer(e.cond)), uintptr(unsafe.Pointer(&arr))); err != nil {
		return nil, fmt.Errorf("uia: children: %w", err)
	}
	if arr == nil {
		return nil, nil
	}
	defer arr.Release()

	var n int32
	if err := comCall(arr, slotElementArrayLength, uintptr(unsafe.Pointer(&n))); err != nil {
		return nil, fmt.Errorf("uia: children length: %w", err)
	}
	out := make([]Element, 0, n)
	for i := range n {
		var child *ole.IUnknown
		if err := comCall(arr, slotElementArrayGetElement, uintptr(i), uintptr(unsafe.Pointer(&child))); err != nil {
			for _, c := range out {
				c.Release()
			}
			return nil, fmt.Errorf("uia: child %d: %w", i, err)
		}
		out = append(out, &element{raw: child, cond: e.cond})
	}
	return out, nil
}

func (e *element) SetFocus() error {
	if err := comCall(e.raw, slotElementSetFocus); err != nil {
		return fmt.Errorf("uia: set focus: %w", err)
	}
	return nil
}

func (e *element) Release() {
	if e.raw != nil {
		e.raw.Release()
		e.raw = nil
	}
}

func (e *element) bstrProperty(slot int) (string, error) {
	var bstr *uint16
	if err := comCall(e.raw, slot, uintptr(unsafe.Pointer(&bstr))); err != nil {
		return "", fmt.Errorf("uia: property %d: %w", slot, err)
	}
	if bstr == nil {
		return "", nil
	}
	s := windows.UTF16PtrToString(bstr)
	procSysFreeString.Call(uintptr(unsafe.Pointer(bstr)))
	return s, nil
}

// comCall invokes vtable slot of obj with obj as the receiver and maps a
// failing HRESULT to an error.
func comCall(obj *ole.IUnknown, slot int, args ...uintptr) error {
	if obj == nil {
		return ErrElementGone
	}
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	hr, _, _ := syscall.SyscallN(fn, append([]uintptr{uintptr(unsafe.Pointer(obj))}, args...)...)
	if uint32(hr) == hresultElementNotAvailable {
		return ErrElementGone
	}
	if int32(hr) < 0 {
		return ole.NewError(hr)
	}
	return nil
}
