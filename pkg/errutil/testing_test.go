// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/pkg/errutil"
)

var errSentinel = errors.New("sentinel")

func TestAssertErrorCode_InnermostCode(t *testing.T) {
	inner := oops.Code("PLUGIN_NOT_FOUND").In("pluginmgr").With("plugin", "echo").Wrap(errSentinel)
	outer := oops.In("cli").With("command", "invoke").Wrap(inner)

	errutil.AssertErrorCode(t, outer, "PLUGIN_NOT_FOUND")
	errutil.AssertErrorContext(t, outer, "plugin", "echo")
	errutil.AssertErrorContext(t, outer, "command", "invoke")
}

func TestAssertErrorDomain(t *testing.T) {
	err := oops.In("loader").Errorf("no such target")
	errutil.AssertErrorDomain(t, err, "loader")
}
