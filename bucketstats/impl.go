// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package bucketstats

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

var (
	pkgNameToGroupName map[string]map[string]interface{}
	statsNameMapLock   sync.Mutex
)

func isStatType(fieldAsType reflect.Type) bool {
	switch fieldAsType {
	case reflect.TypeOf(Total{}), reflect.TypeOf(Average{}), reflect.TypeOf(BucketLog2Round{}):
		return true
	}
	return false
}

func structValue(statsGroupName string, statsStruct interface{}) reflect.Value {
	if reflect.TypeOf(statsStruct).Kind() != reflect.Ptr ||
		reflect.ValueOf(statsStruct).Elem().Type().Kind() != reflect.Struct {
		panic(fmt.Sprintf("statsStruct for statistics group '%s' is (%s), should be (*struct)",
			statsGroupName, reflect.TypeOf(statsStruct)))
	}
	return reflect.ValueOf(statsStruct).Elem()
}

// Register a set of statistics, where the statistics are one or more fields in
// the passed structure.
//
func register(pkgName string, statsGroupName string, statsStruct interface{}) {
	if pkgName == "" && statsGroupName == "" {
		panic("statistics group must have non-empty pkgName or statsGroupName")
	}

	structAsValue := structValue(statsGroupName, statsStruct)
	structAsType := structAsValue.Type()

	// find all the statistics fields and init them;
	// assign them a name if they don't have one;
	// verify each name is only used once
	names := make(map[string]struct{})

	for i := 0; i < structAsType.NumField(); i++ {
		fieldName := structAsType.Field(i).Name
		fieldAsValue := structAsValue.Field(i)

		if !isStatType(structAsType.Field(i).Type) {
			continue
		}
		if !fieldAsValue.CanSet() {
			panic(fmt.Sprintf("statistics group '%s' field %s must be exported to be usable by bucketstats",
				statsGroupName, fieldName))
		}

		statNameValue := fieldAsValue.FieldByName("Name")
		if statNameValue.String() == "" {
			statNameValue.SetString(fieldName)
		} else {
			statNameValue.SetString(scrubName(statNameValue.String()))
		}
		if _, ok := names[statNameValue.String()]; ok {
			panic(fmt.Sprintf("stats '%s' field %s Name '%s' is already in use",
				statsGroupName, fieldName, statNameValue))
		}
		names[statNameValue.String()] = struct{}{}

		if v, ok := fieldAsValue.Addr().Interface().(*BucketLog2Round); ok {
			if v.NBucket == 0 || v.NBucket > uint(len(v.statBuckets)) {
				v.NBucket = uint(len(v.statBuckets))
			} else if v.NBucket < 10 {
				v.NBucket = 10
			}
		}
	}

	statsGroupName = scrubName(statsGroupName)
	pkgName = scrubName(pkgName)

	statsNameMapLock.Lock()
	defer statsNameMapLock.Unlock()

	if pkgNameToGroupName == nil {
		pkgNameToGroupName = make(map[string]map[string]interface{})
	}
	if pkgNameToGroupName[pkgName] == nil {
		pkgNameToGroupName[pkgName] = make(map[string]interface{})
	}
	if pkgNameToGroupName[pkgName][statsGroupName] != nil {
		panic(fmt.Sprintf("pkgName '%s' with statsGroupName '%s' is already registered",
			pkgName, statsGroupName))
	}
	pkgNameToGroupName[pkgName][statsGroupName] = statsStruct
}

func unRegister(pkgName string, statsGroupName string) {
	pkgName = scrubName(pkgName)
	statsGroupName = scrubName(statsGroupName)

	statsNameMapLock.Lock()
	defer statsNameMapLock.Unlock()

	// silently ignore groups that don't exist
	if pkgNameToGroupName[pkgName] != nil {
		delete(pkgNameToGroupName[pkgName], statsGroupName)

		if len(pkgNameToGroupName[pkgName]) == 0 {
			delete(pkgNameToGroupName, pkgName)
		}
	}
}

func sortedKeys(m map[string]map[string]interface{}) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// Return the selected group(s) of statistics as a string, sorted by name.
//
func sprintStats(stringFmt StatStringFormat, pkgName string, statsGroupName string) (statValues string) {
	statsNameMapLock.Lock()
	defer statsNameMapLock.Unlock()

	var pkgNames []string
	if pkgName == "*" {
		pkgNames = sortedKeys(pkgNameToGroupName)
	} else {
		pkgNames = []string{scrubName(pkgName)}
	}

	for _, pkg := range pkgNames {
		var groupNames []string
		if statsGroupName == "*" {
			for group := range pkgNameToGroupName[pkg] {
				groupNames = append(groupNames, group)
			}
			sort.Strings(groupNames)
		} else {
			groupNames = []string{scrubName(statsGroupName)}
		}

		for _, group := range groupNames {
			statsStruct, ok := pkgNameToGroupName[pkg][group]
			if !ok {
				panic(fmt.Sprintf("bucketstats.sprintStats(): statistics group '%s.%s' is not registered",
					pkg, group))
			}
			statValues += sprintStatsStruct(stringFmt, pkg, group, statsStruct)
		}
	}
	return
}

func sprintStatsStruct(stringFmt StatStringFormat, pkgName string, statsGroupName string,
	statsStruct interface{}) (statValues string) {

	structAsValue := structValue(statsGroupName, statsStruct)
	structAsType := structAsValue.Type()

	for i := 0; i < structAsType.NumField(); i++ {
		if !isStatType(structAsType.Field(i).Type) {
			continue
		}
		statValues += structAsValue.Field(i).Addr().Interface().(Totaler).Sprint(stringFmt, pkgName, statsGroupName)
	}
	return
}

// Construct and return a statistics name (fully qualified field name) in the specified format.
//
func statisticName(stringFmt StatStringFormat, pkgName string, statsGroupName string, fieldName string) string {
	switch stringFmt {
	case StatFormatParsable1:
		switch {
		case pkgName == "":
			return statsGroupName + "." + fieldName
		case statsGroupName == "":
			return pkgName + "." + fieldName
		default:
			return pkgName + "." + statsGroupName + "." + fieldName
		}
	}

	return fmt.Sprintf("pkg: '%s' Stats Group '%s' field '%s': Unknown StatStringFormat: '%v'\n",
		pkgName, statsGroupName, fieldName, stringFmt)
}

func (this *Total) sprint(stringFmt StatStringFormat, pkgName string, statsGroupName string) string {
	statName := statisticName(stringFmt, pkgName, statsGroupName, this.Name)

	switch stringFmt {
	case StatFormatParsable1:
		return fmt.Sprintf("%s total:%d\n", statName, this.TotalGet())
	}

	return fmt.Sprintf("statName '%s': Unknown StatStringFormat: '%v'\n", statName, stringFmt)
}

func (this *Average) sprint(stringFmt StatStringFormat, pkgName string, statsGroupName string) string {
	statName := statisticName(stringFmt, pkgName, statsGroupName, this.Name)

	switch stringFmt {
	case StatFormatParsable1:
		return fmt.Sprintf("%s total:%d count:%d avg:%d\n",
			statName, this.TotalGet(), this.CountGet(), this.AverageGet())
	}

	return fmt.Sprintf("statName '%s': Unknown StatStringFormat: '%v'\n", statName, stringFmt)
}

// squareAtLeastPow2 reports whether value*value >= 2^exp (exp < 128).
func squareAtLeastPow2(value uint64, exp uint) bool {
	hi, lo := bits.Mul64(value, value)
	if exp >= 64 {
		return hi >= uint64(1)<<(exp-64)
	}
	return hi > 0 || lo >= uint64(1)<<exp
}

// log2RoundIdx returns round(log2(value)) + 1, or 0 for a value of 0.
//
// log2(value) rounds up exactly when value >= 2^n * sqrt(2), with n the floor
// of log2(value), i.e. when value^2 >= 2^(2n+1).
func log2RoundIdx(value uint64) uint {
	if value == 0 {
		return 0
	}
	n := uint(bits.Len64(value)) - 1
	if squareAtLeastPow2(value, 2*n+1) {
		return n + 2
	}
	return n + 1
}

// floorSqrtPow2 returns floor(sqrt(2^exp)).
func floorSqrtPow2(exp uint) *big.Int {
	var v big.Int
	v.Lsh(big.NewInt(1), exp)
	return v.Sqrt(&v)
}

// bucketRange returns the smallest and largest value log2RoundIdx maps to idx.
func bucketRange(idx uint) (low uint64, high uint64) {
	switch idx {
	case 0:
		return 0, 0
	case 1:
		return 1, 1
	}

	// values in bucket idx satisfy 2^(2k-1) <= v^2 < 2^(2k+1) with k = idx-1;
	// neither bound is a perfect square
	k := idx - 1
	bigLow := floorSqrtPow2(2*k - 1)
	bigLow.Add(bigLow, big.NewInt(1))
	bigHigh := floorSqrtPow2(2*k + 1)

	if !bigLow.IsUint64() {
		return math.MaxUint64, math.MaxUint64
	}
	low = bigLow.Uint64()
	if !bigHigh.IsUint64() {
		return low, math.MaxUint64
	}
	return low, bigHigh.Uint64()
}

// The canonical distribution for a bucketized statistic is an array of BucketInfo.
//
func bucketDistMake(nBucket uint, statBuckets []uint64) []BucketInfo {
	if nBucket == 0 {
		nBucket = uint(len(statBuckets))
	}

	bucketInfo := make([]BucketInfo, nBucket)
	for i := uint(0); i < nBucket; i++ {
		bucketInfo[i].Count = atomicLoad(&statBuckets[i])
		bucketInfo[i].RangeLow, bucketInfo[i].RangeHigh = bucketRange(i)
		if i > 0 {
			bucketInfo[i].NominalVal = uint64(1) << (i - 1)
		}
	}

	// the last bucket absorbs everything larger
	bucketInfo[nBucket-1].RangeHigh = math.MaxUint64

	return bucketInfo
}

// Given the distribution ([]BucketInfo) for a bucketized statistic, calculate:
//
// o the index of the last entry with a non-zero count
// o the count (number things in buckets)
// o sum of counts * the midpoint of each bucket's range, and
// o mean (average)
//
func bucketCalcStat(bucketInfo []BucketInfo) (lastIdx int, count uint64, sum uint64, mean uint64) {
	var (
		bigSum     big.Int
		bigMean    big.Int
		bigTmp     big.Int
		bigProduct big.Int
	)

	for i := range bucketInfo {
		count += bucketInfo[i].Count

		mid := bucketInfo[i].RangeLow/2 + bucketInfo[i].RangeHigh/2 +
			(bucketInfo[i].RangeLow & bucketInfo[i].RangeHigh & 0x1)
		bigTmp.SetUint64(bucketInfo[i].Count)
		bigProduct.SetUint64(mid)
		bigProduct.Mul(&bigProduct, &bigTmp)
		bigSum.Add(&bigSum, &bigProduct)

		if bucketInfo[i].Count > 0 {
			lastIdx = i
		}
	}
	if count > 0 {
		bigTmp.SetUint64(count)
		bigMean.Div(&bigSum, &bigTmp)
	}

	// sum is math.MaxUint64 if bigSum overflows
	if bigSum.IsUint64() {
		sum = bigSum.Uint64()
	} else {
		sum = math.MaxUint64
	}
	mean = bigMean.Uint64()

	return
}

// Return a string with the bucketized statistic content in the specified format.
//
func bucketSprint(stringFmt StatStringFormat, pkgName string, statsGroupName string, fieldName string,
	bucketInfo []BucketInfo) string {

	lastIdx, count, sum, mean := bucketCalcStat(bucketInfo)
	statName := statisticName(stringFmt, pkgName, statsGroupName, fieldName)

	switch stringFmt {
	case StatFormatParsable1:
		line := fmt.Sprintf("%s total:%d count:%d avg:%d", statName, sum, count, mean)

		// bucket names are printed as a number up to 3 digits long, then as 2^n
		for idx := 0; idx < lastIdx+1; idx++ {
			if bucketInfo[idx].NominalVal < 1024 {
				line += fmt.Sprintf(" %d:%d", bucketInfo[idx].NominalVal, bucketInfo[idx].Count)
			} else {
				line += fmt.Sprintf(" 2^%d:%d", idx-1, bucketInfo[idx].Count)
			}
		}
		return line + "\n"
	}

	return fmt.Sprintf("StatisticName '%s': Unknown StatStringFormat: '%v'\n", statName, stringFmt)
}

// Replace illegal characters in names with underbar (`_`)
//
func scrubName(name string) string {
	// Names should include only printable characters that are not
	// whitespace.  Also disallow splat ('*') (used for wildcard for
	// statistic group names), sharp ('#') (used for comments in output) and
	// colon (':') (used as a delimiter in "key:value" output).
	replaceChar := func(r rune) rune {
		switch {
		case unicode.IsSpace(r), !unicode.IsPrint(r):
			return '_'
		case r == '*', r == ':', r == '#':
			return '_'
		}
		return r
	}

	return strings.Map(replaceChar, name)
}

func atomicLoad(addr *uint64) uint64 {
	return atomic.LoadUint64(addr)
}
