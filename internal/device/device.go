// Package device describes the compute host the run executes on.
package device

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Info summarises the host CPU and how many forward replicas to run.
type Info struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	Features      []string
	Replicas      int
}

// Probe inspects the CPU. With multi set, one replica is used per physical
// core; otherwise the run stays on a single replica.
func Probe(multi bool) Info {
	info := Info{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		Replicas:      1,
	}
	if info.PhysicalCores <= 0 {
		info.PhysicalCores = runtime.NumCPU()
	}
	if info.LogicalCores <= 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	for _, f := range []struct {
		name string
		id   cpuid.FeatureID
	}{
		{"AVX2", cpuid.AVX2},
		{"FMA3", cpuid.FMA3},
		{"AVX512F", cpuid.AVX512F},
		{"ASIMD", cpuid.ASIMD},
	} {
		if cpuid.CPU.Supports(f.id) {
			info.Features = append(info.Features, f.name)
		}
	}
	if multi {
		info.Replicas = info.PhysicalCores
	}
	return info
}

func (i Info) String() string {
	brand := i.Brand
	if brand == "" {
		brand = "unknown"
	}
	return fmt.Sprintf("cpu=%q physical=%d logical=%d features=[%s] replicas=%d",
		brand, i.PhysicalCores, i.LogicalCores, strings.Join(i.Features, ","), i.Replicas)
}
