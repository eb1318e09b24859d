// Copyright 2025 BookVision Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import "errors"

var (
	// ErrUnsupportedFormat indicates the input is neither a PDF nor a
	// supported image format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrFileTooLarge indicates the input exceeds the configured size
	// limit for its format.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrNoOCR indicates an image was submitted but no OCR engine is
	// configured.
	ErrNoOCR = errors.New("no OCR engine configured")

	// ErrImageNotFound indicates no rendered preview exists for the
	// requested page.
	ErrImageNotFound = errors.New("page image not found")
)
