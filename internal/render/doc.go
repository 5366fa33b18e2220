// Package render turns clustering snapshots into charts: an HTML timeline
// built with go-echarts and per-iteration PNG frames drawn with gonum/plot.
// Both recorders have a Record method that fits driver.UpdateFunc.
package render
