// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package halter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NVIDIA/rbfuzz/conf"
)

// NewFromConfMap returns a Halter armed per the optional [FaultInjection]
// section of confMap:
//
//   [FaultInjection]
//   Arm : rbtree.skipInsertFixup:3 rbtree.loseDelete:10
//
// Each value is <haltLabel>:<haltAfterCount>.
func NewFromConfMap(confMap conf.ConfMap) (halter *Halter, err error) {
	halter = New()

	armSlice, fetchErr := confMap.FetchOptionValueStringSlice("FaultInjection", "Arm")
	if nil != fetchErr {
		// Nothing armed
		return
	}

	for _, armString := range armSlice {
		i := strings.LastIndex(armString, ":")
		if 0 > i {
			err = fmt.Errorf("[FaultInjection]Arm value '%v' must be <haltLabel>:<haltAfterCount>", armString)
			return
		}
		haltAfterCount, parseErr := strconv.ParseUint(armString[i+1:], 10, 32)
		if nil != parseErr {
			err = fmt.Errorf("[FaultInjection]Arm value '%v' has bad haltAfterCount: %v", armString, parseErr)
			return
		}
		err = halter.Arm(armString[:i], uint32(haltAfterCount))
		if nil != err {
			return
		}
	}

	return
}
