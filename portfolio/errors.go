// Copyright 2022-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolio

import "errors"

var (
	// input/validation errors: reported synchronously, never partially applied
	ErrInvalidKey         = errors.New("could not parse portfolio key")
	ErrInvalidTier        = errors.New("unrecognized portfolio tier")
	ErrInvalidRiskProfile = errors.New("unrecognized risk profile")
	ErrCategoryRequired   = errors.New("category is required for this tier")
	ErrCategoryForbidden  = errors.New("tier does not support categories")
	ErrMissingAsset       = errors.New("signal is missing a required asset for the risk profile")
	ErrNoPrimaryAsset     = errors.New("no primary asset found in signal text")

	// data-gap errors: recoverable via the flat-day policy unless strict
	ErrStrictGap = errors.New("data gap encountered in strict mode")

	// arithmetic/invariant errors: always fatal, they indicate upstream
	// data corruption that must be fixed at the source
	ErrCorruptPrice = errors.New("zero or negative price would corrupt compounding")
	ErrEmptySeries  = errors.New("series has no points")

	ErrNoStartDate = errors.New("no start date could be determined for curve build")
)
