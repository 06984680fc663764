// Package timeseries runs the per-day processing chain from raw recordings to
// exported spike events: preprocess, bandpass filter, mean projection, motion
// correction, CNMFe cell detection, cell set export, event detection with
// auto classification, deconvolution, and spike event export.
//
// Every operation walks the days in catalog order. A day whose outputs are
// already complete is skipped, and partial output is removed before the day is
// redone.
package timeseries
