// Package iq defines the sample and sample-time types shared by the RX ring
// buffer and TX buffer pool.
package iq

// Sample is a complex baseband sample. |Re|,|Im| <= 1.0 corresponds to
// DAC/ADC full scale (0 dBFS).
type Sample = complex64

// SampleTime is a count of samples since hardware stream start. Monotonically
// nondecreasing; conversion to seconds uses the negotiated sample rate.
type SampleTime = int64
