//go:build !nogpu && !(js && wasm)

package gpu

import "github.com/gogpu/wgpu/hal/vulkan"

func init() {
	register(newBackend("vulkan", vulkan.Backend{}, true), hardwarePriority)
}
