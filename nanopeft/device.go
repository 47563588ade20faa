package nanopeft

import (
	"os"
	"runtime"
)

// DeviceKind identifies the compute device a run is pinned to
type DeviceKind string

const (
	DeviceCPU   DeviceKind = "cpu"
	DeviceCUDA  DeviceKind = "cuda"
	DeviceMetal DeviceKind = "mps"
)

// Device is the selected compute device plus the device-mapping mode.
// AutoShard mirrors device_map="auto": parameters may be spread across
// available devices. Forced-CPU runs disable it.
type Device struct {
	Kind      DeviceKind
	AutoShard bool
}

func (d Device) String() string {
	return string(d.Kind)
}

// Accelerators reports which accelerator backends are present on the host
type Accelerators struct {
	CUDA  bool
	Metal bool
}

// DetectAccelerators probes the host for accelerator backends
func DetectAccelerators() Accelerators {
	acc := Accelerators{}
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		acc.CUDA = true
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		acc.Metal = true
	}
	return acc
}

// SelectDevice chooses the compute device for a run. CI mode or an
// explicit accelerator opt-out forces CPU with sharding disabled;
// otherwise the best available accelerator wins, falling back to CPU,
// with automatic device sharding left on. Selection never fails.
func SelectDevice(getenv func(string) string, acc Accelerators) Device {
	if getenv("CI") != "" || getenv("NANOPEFT_FORCE_CPU") != "" {
		return Device{Kind: DeviceCPU, AutoShard: false}
	}

	switch {
	case acc.CUDA:
		return Device{Kind: DeviceCUDA, AutoShard: true}
	case acc.Metal:
		return Device{Kind: DeviceMetal, AutoShard: true}
	default:
		return Device{Kind: DeviceCPU, AutoShard: true}
	}
}

// SelectDeviceFromEnv selects the device from the process environment
func SelectDeviceFromEnv() Device {
	return SelectDevice(os.Getenv, DetectAccelerators())
}
