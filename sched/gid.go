package sched

import "runtime"

// getGoroutineID extracts the numeric id from the current goroutine's
// stack trace header ("goroutine 123 [running]:..."). There is no
// public API for goroutine-local storage, so this is the same
// technique eventloop.getGoroutineID uses to recognize its own loop
// goroutine; here it is the substitute for the per-core "current
// thread pointer" a real kernel keeps in a CPU register.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
