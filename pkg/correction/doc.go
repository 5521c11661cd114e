// Package correction runs the radiometric correction of a MERIS L1b product.
//
// A Pipeline is built in one sequential step: the source product is
// classified and validated, the auxiliary tables of the enabled stages are
// loaded and the target band layout is derived. Once NewPipeline returns, all
// of that state is read-only and Run may process row tiles concurrently. Each
// target sample passes the stages in a fixed order: calibration, smile
// correction, radiance-to-reflectance conversion, equalization. The result is
// clamped to the range of the target band.
package correction
