//go:build linux

package dll

// #cgo LDFLAGS: -ldl
// #define _GNU_SOURCE
// #include <dlfcn.h>
// #include <link.h>
// #include <stdlib.h>
import "C"

import (
	"path/filepath"
	"unsafe"

	"golang.org/x/xerrors"
)

// probeLibraryDir implements spec.md §4.8's DynLoaderProbe on Linux: open
// filename via dlopen and ask dlinfo for the link_map, whose l_name is the
// resolved path the loader found it at. Used only to locate the system
// NVIDIA-provided libGLX_nvidia.so.0, to then find its sibling
// nvidia/wine/{nvngx,_nvngx}.dll.
func probeLibraryDir(filename string) (string, error) {
	cname := C.CString(filename)
	defer C.free(unsafe.Pointer(cname))

	handle := C.dlopen(cname, C.RTLD_LAZY|C.RTLD_NOLOAD)
	if handle == nil {
		handle = C.dlopen(cname, C.RTLD_LAZY)
	}
	if handle == nil {
		return "", xerrors.Errorf("dlopen %s: not found", filename)
	}
	defer C.dlclose(handle)

	var linkMap *C.struct_link_map
	if C.dlinfo(handle, C.RTLD_DI_LINKMAP, unsafe.Pointer(&linkMap)) != 0 {
		return "", xerrors.Errorf("dlinfo %s: failed", filename)
	}
	if linkMap == nil || linkMap.l_name == nil {
		return "", xerrors.Errorf("dlinfo %s: no link_map name", filename)
	}

	resolved := C.GoString(linkMap.l_name)
	return filepath.Dir(resolved), nil
}
