// Package util provides utility components shared by the db.KVDB engines.
//
// The package contains:
//   - statistics: Stats, DistributionStats and a SizeSample used to estimate database size
//     from a sample of entries
//   - snapshot: the portable snapshot format written by Save and read by Load, so a snapshot
//     of one engine can be restored into another
package util
