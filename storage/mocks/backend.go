// Copyright 2016 Google Inc. All Rights Reserved.
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

// Package mocks provides a gomock-based mock of storage.Backend, hand
// written in the shape mockgen would generate, for tests that need to
// assert on exactly which Backend calls a caller makes rather than running
// them against the real in-memory reference backend.
package mocks

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
)

// MockBackend is a mock of storage.Backend.
type MockBackend struct {
	ctrl     *gomock.Controller
	recorder *MockBackendMockRecorder
}

// MockBackendMockRecorder is the recorder for MockBackend's expected calls.
type MockBackendMockRecorder struct {
	mock *MockBackend
}

// NewMockBackend returns a new mock governed by ctrl.
func NewMockBackend(ctrl *gomock.Controller) *MockBackend {
	mock := &MockBackend{ctrl: ctrl}
	mock.recorder = &MockBackendMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockBackend) EXPECT() *MockBackendMockRecorder {
	return m.recorder
}

// Put mocks storage.Backend.Put.
func (m *MockBackend) Put(ctx context.Context, status storage.VerificationStatus, e *entry.Entry) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Put", ctx, status, e)
	ret0, _ := ret[0].(error)
	return ret0
}

// Put indicates an expected call of Put.
func (mr *MockBackendMockRecorder) Put(ctx, status, e interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Put", reflect.TypeOf((*MockBackend)(nil).Put), ctx, status, e)
}

// Get mocks storage.Backend.Get.
func (m *MockBackend) Get(ctx context.Context, id entry.ID) (*entry.Entry, storage.VerificationStatus, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, id)
	ret0, _ := ret[0].(*entry.Entry)
	ret1, _ := ret[1].(storage.VerificationStatus)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// Get indicates an expected call of Get.
func (mr *MockBackendMockRecorder) Get(ctx, id interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockBackend)(nil).Get), ctx, id)
}

// GetTips mocks storage.Backend.GetTips.
func (m *MockBackend) GetTips(ctx context.Context, treeID entry.ID) ([]entry.ID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetTips", ctx, treeID)
	ret0, _ := ret[0].([]entry.ID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetTips indicates an expected call of GetTips.
func (mr *MockBackendMockRecorder) GetTips(ctx, treeID interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetTips", reflect.TypeOf((*MockBackend)(nil).GetTips), ctx, treeID)
}

// GetSubtreeTips mocks storage.Backend.GetSubtreeTips.
func (m *MockBackend) GetSubtreeTips(ctx context.Context, treeID entry.ID, subtree string) ([]entry.ID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSubtreeTips", ctx, treeID, subtree)
	ret0, _ := ret[0].([]entry.ID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSubtreeTips indicates an expected call of GetSubtreeTips.
func (mr *MockBackendMockRecorder) GetSubtreeTips(ctx, treeID, subtree interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSubtreeTips", reflect.TypeOf((*MockBackend)(nil).GetSubtreeTips), ctx, treeID, subtree)
}

// GetSubtreeTipsUpTo mocks storage.Backend.GetSubtreeTipsUpTo.
func (m *MockBackend) GetSubtreeTipsUpTo(ctx context.Context, treeID entry.ID, subtree string, frontier []entry.ID) ([]entry.ID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSubtreeTipsUpTo", ctx, treeID, subtree, frontier)
	ret0, _ := ret[0].([]entry.ID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSubtreeTipsUpTo indicates an expected call of GetSubtreeTipsUpTo.
func (mr *MockBackendMockRecorder) GetSubtreeTipsUpTo(ctx, treeID, subtree, frontier interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSubtreeTipsUpTo", reflect.TypeOf((*MockBackend)(nil).GetSubtreeTipsUpTo), ctx, treeID, subtree, frontier)
}

// AncestorsOf mocks storage.Backend.AncestorsOf.
func (m *MockBackend) AncestorsOf(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) ([]entry.ID, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AncestorsOf", ctx, treeID, ids, subtree)
	ret0, _ := ret[0].([]entry.ID)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// AncestorsOf indicates an expected call of AncestorsOf.
func (mr *MockBackendMockRecorder) AncestorsOf(ctx, treeID, ids, subtree interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AncestorsOf", reflect.TypeOf((*MockBackend)(nil).AncestorsOf), ctx, treeID, ids, subtree)
}

// PathFromTo mocks storage.Backend.PathFromTo.
func (m *MockBackend) PathFromTo(ctx context.Context, treeID entry.ID, lower, upper []entry.ID, subtree string) ([]*entry.Entry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PathFromTo", ctx, treeID, lower, upper, subtree)
	ret0, _ := ret[0].([]*entry.Entry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// PathFromTo indicates an expected call of PathFromTo.
func (mr *MockBackendMockRecorder) PathFromTo(ctx, treeID, lower, upper, subtree interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PathFromTo", reflect.TypeOf((*MockBackend)(nil).PathFromTo), ctx, treeID, lower, upper, subtree)
}

// MergeBase mocks storage.Backend.MergeBase.
func (m *MockBackend) MergeBase(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) (entry.ID, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MergeBase", ctx, treeID, ids, subtree)
	ret0, _ := ret[0].(entry.ID)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// MergeBase indicates an expected call of MergeBase.
func (mr *MockBackendMockRecorder) MergeBase(ctx, treeID, ids, subtree interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MergeBase", reflect.TypeOf((*MockBackend)(nil).MergeBase), ctx, treeID, ids, subtree)
}

var _ storage.Backend = (*MockBackend)(nil)
