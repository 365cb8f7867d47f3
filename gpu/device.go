// Package gpu runs the layout pipeline as WGSL compute passes over storage
// buffers. The engine is headless: no surface or swapchain, only an adapter,
// a device, and a queue.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

type gpuContext struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

func newGpuContext() (*gpuContext, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "mavity device",
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}

	return &gpuContext{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}, nil
}

func (c *gpuContext) release() {
	if c.device != nil {
		c.device.Release()
	}
	if c.adapter != nil {
		c.adapter.Release()
	}
	if c.instance != nil {
		c.instance.Release()
	}
}
