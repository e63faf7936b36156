package vm

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// vm_debug gates Printf tracing on the fault and eviction hot paths.
const vm_debug = false

type counter int64

func (c *counter) inc() { atomic.AddInt64((*int64)(c), 1) }

// vmStats tallies page-fault-path events, in the same reflect-driven
// style as the filesystem's opStats.
type vmStats struct {
	Nfault   counter
	Nevict   counter
	Nswapout counter
	Nfilein  counter
}

func newVMStats() *vmStats { return &vmStats{} }

func (s *vmStats) String() string {
	v := reflect.ValueOf(s).Elem()
	t := v.Type()
	out := ""
	for i := 0; i < t.NumField(); i++ {
		if i > 0 {
			out += " "
		}
		c := v.Field(i).Addr().Interface().(*counter)
		out += fmt.Sprintf("%s=%d", t.Field(i).Name, atomic.LoadInt64((*int64)(c)))
	}
	return out
}
