package renderer

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"unsafe"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"bikestreets/internal/camera"
	"bikestreets/internal/overlay"
	"bikestreets/internal/style"
	"bikestreets/pkg/tiles"
)

const puckSize = 64

// Vertex represents a vertex with position and texture coordinates
type Vertex struct {
	Position [2]float32
	TexCoord [2]float32
}

// QuadInfo matches the shader uniform.
type QuadInfo struct {
	OffsetX float32
	OffsetY float32
	ScaleX  float32
	ScaleY  float32
}

// TileTexture holds GPU resources for a single tile
type TileTexture struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView

	// Revision is the style revision the overlay was drawn with.
	Revision uint64
}

func (t *TileTexture) release() {
	t.View.Release()
	t.Texture.Release()
}

// Marker is the location puck to draw this frame.
type Marker struct {
	Lat     float64
	Lon     float64
	Bearing float64
	Compass bool
}

// Renderer handles all WebGPU rendering
type Renderer struct {
	device          *wgpu.Device
	queue           *wgpu.Queue
	surface         *wgpu.Surface
	adapter         *wgpu.Adapter
	swapChain       *wgpu.SwapChain
	swapChainFormat wgpu.TextureFormat
	pipeline        *wgpu.RenderPipeline
	sampler         *wgpu.Sampler
	bindGroupLayout *wgpu.BindGroupLayout
	vertexBuffer    *wgpu.Buffer
	indexBuffer     *wgpu.Buffer

	placeholder *TileTexture
	textures    map[tiles.TileCoord]*TileTexture
	texturesMu  sync.RWMutex

	puck        *TileTexture
	puckBearing float64
	puckCompass bool

	logger *slog.Logger

	width  uint32
	height uint32
}

// NewRenderer creates a new WebGPU renderer
func NewRenderer(adapter *wgpu.Adapter, device *wgpu.Device, queue *wgpu.Queue, surface *wgpu.Surface, width, height uint32, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		adapter:  adapter,
		device:   device,
		queue:    queue,
		surface:  surface,
		width:    width,
		height:   height,
		textures: make(map[tiles.TileCoord]*TileTexture),
		logger:   logger,
	}

	if err := r.init(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Renderer) init() error {
	r.swapChainFormat = r.surface.GetPreferredFormat(r.adapter)

	var err error
	r.swapChain, err = r.createSwapChain(r.width, r.height)
	if err != nil {
		return fmt.Errorf("swap chain creation failed: %w", err)
	}

	shader, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "quad_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: QuadShader},
	})
	if err != nil {
		return fmt.Errorf("shader creation failed: %w", err)
	}
	defer shader.Release()

	r.sampler, err = r.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:   wgpu.AddressMode_ClampToEdge,
		AddressModeV:   wgpu.AddressMode_ClampToEdge,
		AddressModeW:   wgpu.AddressMode_ClampToEdge,
		MagFilter:      wgpu.FilterMode_Linear,
		MinFilter:      wgpu.FilterMode_Linear,
		MipmapFilter:   wgpu.MipmapFilterMode_Nearest,
		MaxAnisotrophy: 1,
	})
	if err != nil {
		return fmt.Errorf("sampler creation failed: %w", err)
	}

	r.bindGroupLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "quad_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStage_Vertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStage_Fragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingType_Filtering},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStage_Fragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleType_Float,
					ViewDimension: wgpu.TextureViewDimension_2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group layout creation failed: %w", err)
	}

	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "quad_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout creation failed: %w", err)
	}
	defer pipelineLayout.Release()

	// Tiles are opaque; the puck relies on premultiplied alpha blending.
	r.pipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "quad_pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(Vertex{})),
				StepMode:    wgpu.VertexStepMode_Vertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormat_Float32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormat_Float32x2, Offset: 8, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    r.swapChainFormat,
				Blend:     &wgpu.BlendState_PremultipliedAlphaBlending,
				WriteMask: wgpu.ColorWriteMask_All,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopology_TriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline creation failed: %w", err)
	}

	vertices := []Vertex{
		{Position: [2]float32{0, 0}, TexCoord: [2]float32{0, 0}},
		{Position: [2]float32{1, 0}, TexCoord: [2]float32{1, 0}},
		{Position: [2]float32{1, 1}, TexCoord: [2]float32{1, 1}},
		{Position: [2]float32{0, 1}, TexCoord: [2]float32{0, 1}},
	}
	r.vertexBuffer, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "quad_vertices",
		Contents: wgpu.ToBytes(vertices),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return fmt.Errorf("vertex buffer creation failed: %w", err)
	}

	r.indexBuffer, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "quad_indices",
		Contents: wgpu.ToBytes([]uint16{0, 1, 2, 0, 2, 3}),
		Usage:    wgpu.BufferUsage_Index,
	})
	if err != nil {
		return fmt.Errorf("index buffer creation failed: %w", err)
	}

	placeholder, _ := ComposeTile(nil, nil, tiles.TileCoord{})
	r.placeholder, err = r.createTexture(placeholder)
	if err != nil {
		return fmt.Errorf("placeholder creation failed: %w", err)
	}

	return nil
}

func (r *Renderer) createSwapChain(width, height uint32) (*wgpu.SwapChain, error) {
	return r.device.CreateSwapChain(r.surface, &wgpu.SwapChainDescriptor{
		Usage:       wgpu.TextureUsage_RenderAttachment,
		Format:      r.swapChainFormat,
		Width:       width,
		Height:      height,
		PresentMode: wgpu.PresentMode_Fifo,
	})
}

func (r *Renderer) createTexture(img *image.RGBA) (*TileTexture, error) {
	size := wgpu.Extent3D{
		Width:              uint32(img.Bounds().Dx()),
		Height:             uint32(img.Bounds().Dy()),
		DepthOrArrayLayers: 1,
	}
	texture, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "quad_texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        wgpu.TextureFormat_RGBA8UnormSrgb,
		Usage:         wgpu.TextureUsage_TextureBinding | wgpu.TextureUsage_CopyDst,
	})
	if err != nil {
		return nil, err
	}

	r.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: texture, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspect_All},
		img.Pix,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: uint32(img.Stride), RowsPerImage: size.Height},
		&size,
	)

	view, err := texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          wgpu.TextureFormat_RGBA8UnormSrgb,
		Dimension:       wgpu.TextureViewDimension_2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspect_All,
	})
	if err != nil {
		texture.Release()
		return nil, err
	}

	return &TileTexture{Texture: texture, View: view}, nil
}

// UploadTile composes the basemap with the style layers and uploads the
// result, replacing any older texture for coord.
func (r *Renderer) UploadTile(coord tiles.TileCoord, basemap []byte, revision uint64, layers []style.ResolvedLayer) error {
	img, _ := ComposeTile(basemap, layers, coord)
	tex, err := r.createTexture(img)
	if err != nil {
		return err
	}
	tex.Revision = revision

	r.texturesMu.Lock()
	old := r.textures[coord]
	r.textures[coord] = tex
	r.texturesMu.Unlock()

	if old != nil {
		old.release()
	}
	return nil
}

// NeedsTile reports whether coord is missing or was drawn for an older
// style revision.
func (r *Renderer) NeedsTile(coord tiles.TileCoord, revision uint64) bool {
	r.texturesMu.RLock()
	defer r.texturesMu.RUnlock()
	tex, ok := r.textures[coord]
	return !ok || tex.Revision != revision
}

// TextureCount returns the number of uploaded tile textures.
func (r *Renderer) TextureCount() int {
	r.texturesMu.RLock()
	defer r.texturesMu.RUnlock()
	return len(r.textures)
}

// Trim releases every tile texture not in keep.
func (r *Renderer) Trim(keep []tiles.TileCoord) int {
	wanted := make(map[tiles.TileCoord]bool, len(keep))
	for _, c := range keep {
		wanted[c] = true
	}

	r.texturesMu.Lock()
	var dropped []*TileTexture
	for c, tex := range r.textures {
		if !wanted[c] {
			dropped = append(dropped, tex)
			delete(r.textures, c)
		}
	}
	r.texturesMu.Unlock()

	for _, tex := range dropped {
		tex.release()
	}
	return len(dropped)
}

func (r *Renderer) updatePuck(m *Marker) error {
	bearing := math.Round(m.Bearing)
	if r.puck != nil && r.puckBearing == bearing && r.puckCompass == m.Compass {
		return nil
	}
	tex, err := r.createTexture(overlay.Puck(puckSize, bearing, m.Compass))
	if err != nil {
		return err
	}
	if r.puck != nil {
		r.puck.release()
	}
	r.puck, r.puckBearing, r.puckCompass = tex, bearing, m.Compass
	return nil
}

// frame collects the per-draw resources released after submit.
type frame struct {
	buffers    []*wgpu.Buffer
	bindGroups []*wgpu.BindGroup
}

func (f *frame) release() {
	for _, bg := range f.bindGroups {
		bg.Release()
	}
	for _, b := range f.buffers {
		b.Release()
	}
}

// drawQuad draws view over the screen rectangle at (x, y) with size w x h,
// in pixels from the top-left corner.
func (r *Renderer) drawQuad(pass *wgpu.RenderPassEncoder, f *frame, view *wgpu.TextureView, x, y, w, h float64) error {
	sw, sh := float64(r.width), float64(r.height)
	info := QuadInfo{
		OffsetX: float32(x/sw*2 - 1),
		OffsetY: float32(1 - y/sh*2),
		ScaleX:  float32(w / sw * 2),
		ScaleY:  float32(-h / sh * 2),
	}

	uniform, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "quad_uniform",
		Contents: wgpu.ToBytes([]QuadInfo{info}),
		Usage:    wgpu.BufferUsage_Uniform,
	})
	if err != nil {
		return err
	}
	f.buffers = append(f.buffers, uniform)

	bindGroup, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "quad_bind_group",
		Layout: r.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniform, Size: uint64(unsafe.Sizeof(QuadInfo{}))},
			{Binding: 1, Sampler: r.sampler},
			{Binding: 2, TextureView: view},
		},
	})
	if err != nil {
		return err
	}
	f.bindGroups = append(f.bindGroups, bindGroup)

	pass.SetBindGroup(0, bindGroup, nil)
	pass.DrawIndexed(6, 1, 0, 0, 0)
	return nil
}

// Render draws the visible tiles and, if marker is set, the location puck.
func (r *Renderer) Render(cam *camera.Camera, marker *Marker) error {
	view, err := r.swapChain.GetCurrentTextureView()
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := r.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{})
	if err != nil {
		return err
	}
	defer encoder.Release()

	if marker != nil {
		if err := r.updatePuck(marker); err != nil {
			r.logger.Warn("Failed to build location puck", "error", err)
			marker = nil
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOp_Clear,
			StoreOp:    wgpu.StoreOp_Store,
			ClearValue: wgpu.Color{R: 0.91, G: 0.90, B: 0.88, A: 1.0},
		}},
	})

	pass.SetPipeline(r.pipeline)
	pass.SetVertexBuffer(0, r.vertexBuffer, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(r.indexBuffer, wgpu.IndexFormat_Uint16, 0, wgpu.WholeSize)

	var f frame
	defer f.release()

	minX, minY, maxX, maxY := cam.GetTileBounds()
	r.texturesMu.RLock()
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			coord := tiles.TileCoord{X: x, Y: y, Zoom: cam.Zoom}
			if !coord.Valid() {
				continue
			}
			tv := r.placeholder.View
			if tex, ok := r.textures[coord]; ok {
				tv = tex.View
			}
			screenX, screenY := cam.GetTileScreenPosition(x, y)
			if err := r.drawQuad(pass, &f, tv, screenX, screenY, TileSize, TileSize); err != nil {
				r.texturesMu.RUnlock()
				pass.End()
				return err
			}
		}
	}
	r.texturesMu.RUnlock()

	if marker != nil {
		px, py := cam.GeoToScreen(marker.Lon, marker.Lat)
		half := float64(puckSize) / 2
		if err := r.drawQuad(pass, &f, r.puck.View, px-half, py-half, puckSize, puckSize); err != nil {
			pass.End()
			return err
		}
	}

	pass.End()

	cmdBuffer, err := encoder.Finish(&wgpu.CommandBufferDescriptor{})
	if err != nil {
		return err
	}
	defer cmdBuffer.Release()

	r.queue.Submit(cmdBuffer)
	r.swapChain.Present()

	return nil
}

// Resize handles window resize
func (r *Renderer) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	r.width = width
	r.height = height

	if r.swapChain != nil {
		r.swapChain.Release()
	}

	var err error
	r.swapChain, err = r.createSwapChain(width, height)
	if err != nil {
		r.logger.Error("Failed to recreate swap chain", "width", width, "height", height, "error", err)
	}
}

// Release frees all GPU resources
func (r *Renderer) Release() {
	r.texturesMu.Lock()
	for _, tex := range r.textures {
		tex.release()
	}
	r.textures = make(map[tiles.TileCoord]*TileTexture)
	r.texturesMu.Unlock()

	if r.placeholder != nil {
		r.placeholder.release()
	}
	if r.puck != nil {
		r.puck.release()
	}

	r.vertexBuffer.Release()
	r.indexBuffer.Release()
	r.bindGroupLayout.Release()
	r.pipeline.Release()
	r.sampler.Release()
	if r.swapChain != nil {
		r.swapChain.Release()
	}
}
