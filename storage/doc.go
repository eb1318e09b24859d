// Copyright 2026 BookVision Authors
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


// Package storage provides the storage abstraction layer for BookVision.
//
// It defines the VectorIndex interface that decouples the retrieval engine
// from the persistence implementation, plus the binary serialization used
// by backends. The only backend shipped today is BadgerDB (see the badger
// subpackage); constructors there return the storage.VectorIndex interface
// to prevent callers from coupling to BadgerDB specifics.
//
// Index entries are serialized with the MUS format. The serializers are
// written by hand against mus-go primitives so the on-disk layout is
// explicit and versionable.
package storage
