/*
Package canopy processes overlapping aerial photographs of a tree plantation
into a stitched panorama, a per-tree inventory with shape and health metrics,
and an annotated image with deterministic tree numbering.

The pipeline runs stitching, preprocessing, vegetation detection, crown
segmentation, deduplication, scale remapping, batched health classification
and annotation in strict sequence.  The disease classifier is an injected
capability so the pipeline core has no model or accelerator dependencies of
its own.

See example code and usage in the example subdirectory.
*/
package canopy
