// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	spin "github.com/briandowns/spinner"
)

// Windows terminals render the braille charset poorly, use simple dashes instead.
var charset = spin.CharSets[26]
