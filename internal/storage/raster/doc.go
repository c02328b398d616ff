// Package raster reads and writes analysis grids as classic NetCDF files.
//
// Responsibilities:
//   - CoverGrid files: one INT variable "cover" on (y, x).
//   - Mask files: one BYTE variable "mask" on (y, x), values 0 or 1.
//   - StockGrid files: one FLOAT variable "stock" on (y, x).
//
// Every file carries the grid geometry as global attributes: "geotransform"
// (six DOUBLE coefficients, GDAL order) and "crs" (CHAR).
//
// Dependency rule: raster may import internal/forest. Nothing under
// internal/forest imports raster.
package raster
