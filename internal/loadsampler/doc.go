// Package loadsampler abstracts host load measurement behind an
// injectable Sampler interface.
//
// The System implementation polls memory and CPU usage via gopsutil on
// a background ticker and caches the latest reading in an atomic, so
// request-path reads are lock-free and never touch the OS. The Static
// implementation serves synthetic samples for tests and for hosts that
// disable system polling.
package loadsampler
