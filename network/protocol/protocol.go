/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package protocol names the transport families the server/client bootstrap
// can bind, the same role nabbar-golib/network/protocol plays for its
// socket package.
package protocol

import "strings"

// Network identifies a transport family understood by net.Listen/net.Dial.
type Network uint8

const (
	NetworkTCP Network = iota
	NetworkUDP
	NetworkUnix
)

// Code returns the string accepted by the net package's Listen/Dial family
// of functions for this network.
func (n Network) Code() string {
	switch n {
	case NetworkUDP:
		return "udp"
	case NetworkUnix:
		return "unix"
	default:
		return "tcp"
	}
}

func (n Network) String() string {
	return strings.ToUpper(n.Code())
}

// Parse maps a configuration string (case-insensitive) back to a Network,
// defaulting to NetworkTCP when unrecognized.
func Parse(s string) Network {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "udp":
		return NetworkUDP
	case "unix":
		return NetworkUnix
	default:
		return NetworkTCP
	}
}
