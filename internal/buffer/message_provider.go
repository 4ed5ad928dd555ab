// Copyright 2015 Google Inc. All Rights Reserved.
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

package buffer

// MessageProvider lets a caller override how a Connection allocates and
// recycles the InMessage/OutMessage buffers backing each request, e.g. to
// share a single pool across several mounted file systems or to bound
// memory use under load. A Connection falls back to its own freelist when
// none is supplied.
type MessageProvider interface {
	GetInMessage() *InMessage
	GetOutMessage() *OutMessage
	PutInMessage(*InMessage)
	PutOutMessage(*OutMessage)
}
