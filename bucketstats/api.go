// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package bucketstats implements easy to use statistics collection and
// reporting, including bucketized statistics.  Statistics start at zero and
// grow as they are added to.
//
// The statistics provided include totaler (with the Totaler interface), average
// (with the Averager interface), and distributions (with the Bucketer
// interface).
//
// Each statistic must have a unique name, "Name".  One or more statistics is
// placed in a structure and registered, with a name, via a call to Register()
// before being used.  The set of the statistics registered can be queried using
// the registered name or individually.
//
// Campaigns use these to accumulate per-run step counts, violation counts and
// run durations across concurrent workers.
package bucketstats

import (
	"sync/atomic"
)

type StatStringFormat int

const (
	StatFormatParsable1 StatStringFormat = iota
)

// A Totaler can be incremented, or added to, and tracks the total value of all
// values added.
//
// Adding a negative value is not supported.
//
type Totaler interface {
	Increment()
	Add(value uint64)
	TotalGet() (total uint64)
	Sprint(stringFmt StatStringFormat, pkgName string, statsGroupName string) (values string)
}

// An Averager is a Totaler with a average (mean) function added.
//
type Averager interface {
	Totaler
	CountGet() (count uint64)
	AverageGet() (avg uint64)
}

// BucketInfo holds information for an individual statistics bucket.
//
// NominalVal is 2^(n-1) for bucket n (0 for bucket 0); RangeLow and RangeHigh
// bound the values mapped to the bucket.
//
type BucketInfo struct {
	Count      uint64
	NominalVal uint64
	RangeLow   uint64
	RangeHigh  uint64
}

// A Bucketer is a Averager which also tracks the distribution of values.
//
type Bucketer interface {
	Averager
	DistGet() []BucketInfo
}

// Register and initialize a set of statistics.
//
// statsStruct is a pointer to a structure which has one or more fields holding
// statistics.  It may also contain other fields that are not bucketstats types.
//
// The combination of pkgName and statsGroupName must be unique.  One or the
// other, but not both, can be the empty string.  Whitespace characters, '*',
// '#' and ':' in either name are replaced with '_'.
//
func Register(pkgName string, statsGroupName string, statsStruct interface{}) {
	register(pkgName, statsGroupName, statsStruct)
}

// UnRegister a set of statistics.
//
// Once unregistered, the same or a different set of statistics can be
// registered using the same name.
//
func UnRegister(pkgName string, statsGroupName string) {
	unRegister(pkgName, statsGroupName)
}

// SprintStats returns one or more groups of statistics, one statistic per line.
//
// Use "*" to select all package names with a given group name, all
// groups with a given package name, or all groups.
//
func SprintStats(stringFmt StatStringFormat, pkgName string, statsGroupName string) (values string) {
	return sprintStats(stringFmt, pkgName, statsGroupName)
}

// Total is a simple totaler. It supports the Totaler interface.
//
// Name must be unique within statistics in the structure.  If it is "" then
// Register() will assign a name based on the name of the field.
//
type Total struct {
	total uint64 // Ensure 64-bit alignment
	Name  string
}

func (this *Total) Add(value uint64) {
	atomic.AddUint64(&this.total, value)
}

func (this *Total) Increment() {
	atomic.AddUint64(&this.total, 1)
}

func (this *Total) TotalGet() uint64 {
	return atomic.LoadUint64(&this.total)
}

func (this *Total) Sprint(stringFmt StatStringFormat, pkgName string, statsGroupName string) string {
	return this.sprint(stringFmt, pkgName, statsGroupName)
}

// Average counts a number of items and their average size. It supports the
// Averager interface.
//
type Average struct {
	count uint64 // Ensure 64-bit alignment
	total uint64 // Ensure 64-bit alignment
	Name  string
}

// Add a value to the mean statistics.
//
func (this *Average) Add(value uint64) {
	atomic.AddUint64(&this.total, value)
	atomic.AddUint64(&this.count, 1)
}

func (this *Average) Increment() {
	this.Add(1)
}

func (this *Average) CountGet() uint64 {
	return atomic.LoadUint64(&this.count)
}

func (this *Average) TotalGet() uint64 {
	return atomic.LoadUint64(&this.total)
}

// AverageGet returns 0 until a value has been added.
func (this *Average) AverageGet() uint64 {
	count := atomic.LoadUint64(&this.count)
	if 0 == count {
		return 0
	}
	return atomic.LoadUint64(&this.total) / count
}

func (this *Average) Sprint(stringFmt StatStringFormat, pkgName string, statsGroupName string) string {
	return this.sprint(stringFmt, pkgName, statsGroupName)
}

// BucketLog2Round holds bucketized statistics where the stats value is placed in
// bucket N, determined by round(log2(value) + 1), where round() rounds to the
// nearest integer and value 0 goes in bucket 0 instead of negative infinity.
//
// NBucket determines the number of buckets and has a maximum value of 65 and a
// minimum value of 10.  If NBucket is not set it defaults to 65.  Values past
// the last bucket are counted in the last bucket.  It must be set before the
// statistic is registered and cannot be changed afterward.
//
// Example mappings of values to buckets:
//
//  Values  Bucket
//       0       0
//       1       1
//       2       2
//   3 - 5       3
//  6 - 11       4
// 12 - 22       5
//     etc.
//
type BucketLog2Round struct {
	Name        string
	NBucket     uint
	statBuckets [65]uint64
}

func (this *BucketLog2Round) Add(value uint64) {
	nBucket := this.NBucket
	if nBucket == 0 {
		nBucket = uint(len(this.statBuckets))
	}
	idx := log2RoundIdx(value)
	if idx > nBucket-1 {
		idx = nBucket - 1
	}
	atomic.AddUint64(&this.statBuckets[idx], 1)
}

func (this *BucketLog2Round) Increment() {
	this.Add(1)
}

func (this *BucketLog2Round) CountGet() uint64 {
	_, count, _, _ := bucketCalcStat(this.DistGet())
	return count
}

func (this *BucketLog2Round) TotalGet() uint64 {
	_, _, total, _ := bucketCalcStat(this.DistGet())
	return total
}

func (this *BucketLog2Round) AverageGet() uint64 {
	_, _, _, mean := bucketCalcStat(this.DistGet())
	return mean
}

// DistGet returns BucketInfo information for all the buckets.
//
func (this *BucketLog2Round) DistGet() []BucketInfo {
	return bucketDistMake(this.NBucket, this.statBuckets[:])
}

func (this *BucketLog2Round) Sprint(stringFmt StatStringFormat, pkgName string, statsGroupName string) string {
	return bucketSprint(stringFmt, pkgName, statsGroupName, this.Name, this.DistGet())
}
