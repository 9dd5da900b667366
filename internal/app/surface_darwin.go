package app

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa -framework QuartzCore -framework Metal

#import <Cocoa/Cocoa.h>
#import <QuartzCore/CAMetalLayer.h>
#import <Metal/Metal.h>

// attachMetalLayer makes a CAMetalLayer the backing layer of the window's
// content view. The layer follows the view size so the map can be resized.
void* attachMetalLayer(void* handle) {
    if (handle == NULL) {
        return NULL;
    }
    NSWindow* window = (__bridge NSWindow*)handle;
    NSView* content = [window contentView];
    if (content == nil) {
        return NULL;
    }

    CAMetalLayer* layer = [CAMetalLayer layer];
    layer.device = MTLCreateSystemDefaultDevice();
    layer.pixelFormat = MTLPixelFormatBGRA8Unorm;
    layer.framebufferOnly = YES;
    layer.frame = content.bounds;
    layer.contentsScale = [window backingScaleFactor];
    layer.autoresizingMask = kCALayerWidthSizable | kCALayerHeightSizable;

    [content setWantsLayer:YES];
    [content setLayer:layer];
    return (__bridge void*)layer;
}
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rajveermalviya/go-webgpu/wgpu"
)

const instanceBackends = wgpu.InstanceBackend_Metal

// CreateSurface creates a WebGPU surface backed by a CAMetalLayer.
func CreateSurface(instance *wgpu.Instance, window *glfw.Window) (*wgpu.Surface, error) {
	handle := window.GetCocoaWindow()
	if handle == nil {
		return nil, errors.New("window has no Cocoa handle")
	}

	layer := C.attachMetalLayer(handle)
	if layer == nil {
		return nil, errors.New("could not attach a Metal layer to the window")
	}

	surface := instance.CreateSurface(&wgpu.SurfaceDescriptor{
		Label: "MainSurface",
		MetalLayer: &wgpu.SurfaceDescriptorFromMetalLayer{
			Layer: unsafe.Pointer(layer),
		},
	})
	if surface == nil {
		return nil, errors.New("wgpu could not create a Metal surface")
	}
	return surface, nil
}
