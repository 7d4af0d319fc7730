// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build !darwin || !cgo

package location

const nativeServiceBuilt = false
