// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package conf parses the .INI-style configuration used by rbfuzz runs and
// campaigns, plus "Section.Option=value" overrides given on a command line.
package conf

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ConfMap is accessed via confMap[section_name][option_name][option_value_index] or via the methods below

type ConfMapOption []string
type ConfMapSection map[string]ConfMapOption
type ConfMap map[string]ConfMapSection

// MakeConfMap returns an newly created empty ConfMap
func MakeConfMap() (confMap ConfMap) {
	confMap = make(ConfMap)
	return
}

// MakeConfMapFromFile returns a newly created ConfMap loaded with the contents of the confFilePath-specified file
func MakeConfMapFromFile(confFilePath string) (confMap ConfMap, err error) {
	confMap = MakeConfMap()
	err = confMap.UpdateFromFile(confFilePath)
	return
}

// MakeConfMapFromStrings returns a newly created ConfMap loaded with the contents specified in confStrings
func MakeConfMapFromStrings(confStrings []string) (confMap ConfMap, err error) {
	confMap = MakeConfMap()
	err = confMap.UpdateFromStrings(confStrings)
	if nil != err {
		err = fmt.Errorf("Error building confMap from conf strings: %v", err)
	}
	return
}

// RegEx components used below:

const assignment = "([ \t]*[=:][ \t]*)"
const dot = "(\\.)"
const leftBracket = "(\\[)"
const rightBracket = "(\\])"
const sectionName = "([0-9A-Za-z_\\-/:\\.]+)"
const separator = "([ \t]+|([ \t]*,[ \t]*))"
const token = "(([0-9A-Za-z_\\*\\-/:\\.\\[\\]]+)\\$?)"
const whiteSpace = "([ \t]+)"

// A string to load looks like:
//
//   <section_name_0>.<option_name_0> =
//     or
//   <section_name_1>.<option_name_1> : <value_1>
//     or
//   <section_name_2>.<option_name_2> = <value_2>, <value_3>

var stringRE = regexp.MustCompile("\\A" + token + dot + token + assignment + "(" + token + "(" + separator + token + ")*)?\\z")
var sectionNameOptionNameSeparatorRE = regexp.MustCompile(dot)

// A .conf file to load typically looks like:
//
//   [Run]
//   NoDuplicates  : true
//   RangeBound    = 64           # A comment at the end of a line starting with '#'
//
//   ; A comment on it's own line starting with ';'
//
//   .include ./logging.conf
//
//   [Campaign]
//   Runs    : 1000
//   Workers : 4

var sectionHeaderLineRE = regexp.MustCompile("\\A" + leftBracket + token + rightBracket + "\\z")
var sectionNameRE = regexp.MustCompile(sectionName)
var optionLineRE = regexp.MustCompile("\\A" + token + assignment + "(" + token + "(" + separator + token + ")*)?\\z")
var optionNameOptionValuesSeparatorRE = regexp.MustCompile(assignment)
var optionValueSeparatorRE = regexp.MustCompile(separator)
var includeLineRE = regexp.MustCompile("\\A\\.include" + whiteSpace + token + "\\z")
var includeFilePathSeparatorRE = regexp.MustCompile(whiteSpace)

func splitOptionValues(optionValues string) (optionValuesSplit []string) {
	optionValuesSplit = optionValueSeparatorRE.Split(optionValues, -1)
	if (1 == len(optionValuesSplit)) && ("" == optionValuesSplit[0]) {
		optionValuesSplit = []string{}
	}
	return
}

func (confMap ConfMap) setOption(sectionName string, optionName string, optionValues []string) {
	section, found := confMap[sectionName]
	if !found {
		section = make(ConfMapSection)
		confMap[sectionName] = section
	}
	section[optionName] = optionValues
}

// UpdateFromString modifies a pre-existing ConfMap based on an update
// specified in confString (e.g., from an extra command-line argument)
func (confMap ConfMap) UpdateFromString(confString string) (err error) {
	confStringTrimmed := strings.Trim(confString, " \t")

	if 0 == len(confStringTrimmed) {
		err = fmt.Errorf("trimmed confString: \"%v\" was found to be empty", confString)
		return
	}

	if !stringRE.MatchString(confStringTrimmed) {
		err = fmt.Errorf("malformed confString: \"%v\"", confString)
		return
	}

	sectionNameOptionPayload := sectionNameOptionNameSeparatorRE.Split(confStringTrimmed, 2)
	optionNameOptionValues := optionNameOptionValuesSeparatorRE.Split(sectionNameOptionPayload[1], 2)

	confMap.setOption(sectionNameOptionPayload[0], optionNameOptionValues[0], splitOptionValues(optionNameOptionValues[1]))

	return nil
}

// UpdateFromStrings modifies a pre-existing ConfMap based on an update
// specified in confStrings (e.g., from an extra command-line argument)
func (confMap ConfMap) UpdateFromStrings(confStrings []string) (err error) {
	for _, confString := range confStrings {
		err = confMap.UpdateFromString(confString)
		if nil != err {
			return
		}
	}
	return nil
}

// UpdateFromFile modifies a pre-existing ConfMap based on updates specified in confFilePath
//
// A confFilePath of "-" reads from stdin.
func (confMap ConfMap) UpdateFromFile(confFilePath string) (err error) {
	var (
		confFileBytes      []byte
		currentSectionName string
	)

	if "-" == confFilePath {
		confFileBytes, err = ioutil.ReadAll(os.Stdin)
	} else {
		confFileBytes, err = ioutil.ReadFile(confFilePath)
	}
	if nil != err {
		return
	}

	if !utf8.Valid(confFileBytes) {
		err = fmt.Errorf("file %v contained invalid UTF-8", confFilePath)
		return
	}
	if (0 < len(confFileBytes)) && ('\n' != confFileBytes[len(confFileBytes)-1]) {
		err = fmt.Errorf("file %v did not end in a '\\n' character", confFilePath)
		return
	}

	for lineIndex, currentLine := range strings.Split(string(confFileBytes), "\n") {
		currentLine = strings.SplitN(currentLine, ";", 2)[0] // Trim comment after ';'
		currentLine = strings.SplitN(currentLine, "#", 2)[0] // Trim comment after '#'
		currentLine = strings.Trim(currentLine, " \t")

		if 0 == len(currentLine) {
			continue
		}

		switch {
		case includeLineRE.MatchString(currentLine):
			nestedConfFilePath := includeFilePathSeparatorRE.Split(currentLine, 2)[1]
			if !filepath.IsAbs(nestedConfFilePath) {
				var absConfFilePath string
				absConfFilePath, err = filepath.Abs(confFilePath)
				if nil != err {
					return
				}
				nestedConfFilePath = filepath.Join(filepath.Dir(absConfFilePath), nestedConfFilePath)
			}

			err = confMap.UpdateFromFile(nestedConfFilePath)
			if nil != err {
				return
			}

			currentSectionName = ""
		case sectionHeaderLineRE.MatchString(currentLine):
			currentSectionName = sectionNameRE.FindString(currentLine)
		default:
			if "" == currentSectionName {
				err = fmt.Errorf("file %v line %v: option outside of any Section", confFilePath, lineIndex+1)
				return
			}
			if !optionLineRE.MatchString(currentLine) {
				err = fmt.Errorf("file %v line %v: malformed line '%v'", confFilePath, lineIndex+1, currentLine)
				return
			}

			optionNameOptionValues := optionNameOptionValuesSeparatorRE.Split(currentLine, 2)
			confMap.setOption(currentSectionName, optionNameOptionValues[0], splitOptionValues(optionNameOptionValues[1]))
		}
	}

	return nil
}

// FetchOptionValueStringSlice returns [sectionName]optionName's string values as a []string
func (confMap ConfMap) FetchOptionValueStringSlice(sectionName string, optionName string) (optionValue []string, err error) {
	optionValue = []string{}

	section, ok := confMap[sectionName]
	if !ok {
		err = fmt.Errorf("[%v] missing", sectionName)
		return
	}

	option, ok := section[optionName]
	if !ok {
		err = fmt.Errorf("[%v]%v missing", sectionName, optionName)
		return
	}

	optionValue = option

	return
}

// FetchOptionValueString returns [sectionName]optionName's single string value
func (confMap ConfMap) FetchOptionValueString(sectionName string, optionName string) (optionValue string, err error) {
	optionValueSlice, err := confMap.FetchOptionValueStringSlice(sectionName, optionName)
	if nil != err {
		return
	}

	if 1 != len(optionValueSlice) {
		err = fmt.Errorf("[%v]%v must be single-valued", sectionName, optionName)
		return
	}

	optionValue = optionValueSlice[0]

	return
}

// FetchOptionValueBool returns [sectionName]optionName's single string value converted to a bool
func (confMap ConfMap) FetchOptionValueBool(sectionName string, optionName string) (optionValue bool, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	switch strings.ToLower(optionValueString) {
	case "yes", "on", "true":
		optionValue = true
	case "no", "off", "false":
		optionValue = false
	default:
		err = fmt.Errorf("Couldn't interpret %q as boolean (expected one of 'true'/'false'/'yes'/'no'/'on'/'off')", optionValueString)
	}

	return
}

// FetchOptionValueInt64 returns [sectionName]optionName's single string value converted to an int64
func (confMap ConfMap) FetchOptionValueInt64(sectionName string, optionName string) (optionValue int64, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	optionValue, err = strconv.ParseInt(optionValueString, 10, 64)

	return
}

// FetchOptionValueUint64 returns [sectionName]optionName's single string value converted to a uint64
func (confMap ConfMap) FetchOptionValueUint64(sectionName string, optionName string) (optionValue uint64, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	optionValue, err = strconv.ParseUint(optionValueString, 10, 64)

	return
}

// FetchOptionValueDuration returns [sectionName]optionName's single string value converted to a time.Duration
func (confMap ConfMap) FetchOptionValueDuration(sectionName string, optionName string) (optionValue time.Duration, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	optionValue, err = time.ParseDuration(optionValueString)
	if nil != err {
		return
	}

	if 0 > optionValue {
		err = fmt.Errorf("[%v]%v is negative", sectionName, optionName)
	}

	return
}

// Dump returns the ConfMap in .conf file form with sections and options sorted.
func (confMap ConfMap) Dump() (confMapString string) {
	var (
		sectionNames []string
		sb           strings.Builder
	)

	for sectionName := range confMap {
		sectionNames = append(sectionNames, sectionName)
	}
	sort.Strings(sectionNames)

	for i, sectionName := range sectionNames {
		if 0 < i {
			sb.WriteString("\n")
		}
		sb.WriteString("[" + sectionName + "]\n")

		section := confMap[sectionName]
		optionNames := make([]string, 0, len(section))
		for optionName := range section {
			optionNames = append(optionNames, optionName)
		}
		sort.Strings(optionNames)

		for _, optionName := range optionNames {
			sb.WriteString(optionName + " : " + strings.Join(section[optionName], ", ") + "\n")
		}
	}

	confMapString = sb.String()
	return
}
