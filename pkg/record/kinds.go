/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package record

import "strings"

const (
	KindDevice = "Device"
	KindUser   = "User"
)

// Well-known field names. The entity store maintains secondary indexes on
// hostname, ips and macs.
const (
	FieldHostname   = "hostname"
	FieldIPs        = "ips"
	FieldMACs       = "macs"
	FieldOSType     = "os_type"
	FieldOSVersion  = "os_version"
	FieldSerial     = "serial"
	FieldLastBoot   = "last_boot"
	FieldUptime     = "uptime_seconds"
	FieldInterfaces = "interfaces"
	FieldUsername   = "username"
	FieldEmail      = "email"
	FieldIsAdmin    = "is_admin"
	FieldLastLogon  = "last_logon"
)

// InterfaceSchema describes one network interface nested in a device.
func InterfaceSchema() *Schema {
	return NewSchema("NetworkInterface",
		String("name"),
		String("mac").WithFormat("mac"),
		String("ips").List().WithFormat("ip"),
		Int("vlan").WithRange(0, 4095),
	)
}

// DeviceSchema is the base device schema collectors extend.
func DeviceSchema() *Schema {
	return NewSchema(KindDevice,
		String(FieldHostname).WithFormat("hostname").WithTitle("Host Name"),
		String(FieldIPs).List().WithFormat("ip").WithTitle("IP Addresses"),
		String(FieldMACs).List().WithFormat("mac").WithTitle("MAC Addresses"),
		String(FieldOSType).WithEnum("windows", "linux", "macos", "ios", "android", "other").WithTitle("OS Type"),
		String(FieldOSVersion).WithTitle("OS Version"),
		String(FieldSerial).WithTitle("Serial Number"),
		Time(FieldLastBoot).WithFormat("date-time").WithTitle("Last Boot"),
		Int(FieldUptime).WithMin(0).WithTitle("Uptime (s)"),
		Nested(FieldInterfaces, InterfaceSchema()).List().WithTitle("Network Interfaces"),
	)
}

// UserSchema is the base user schema collectors extend.
func UserSchema() *Schema {
	return NewSchema(KindUser,
		String(FieldUsername).WithTitle("User Name"),
		String(FieldEmail).WithFormat("email").WithTitle("Email"),
		Bool(FieldIsAdmin).WithTitle("Is Admin"),
		Time(FieldLastLogon).WithFormat("date-time").WithTitle("Last Logon"),
	)
}

// SchemaFor returns the base schema for a built-in kind, matched
// case-insensitively.
func SchemaFor(kind string) (*Schema, bool) {
	switch strings.ToLower(kind) {
	case strings.ToLower(KindDevice):
		return DeviceSchema(), true
	case strings.ToLower(KindUser):
		return UserSchema(), true
	default:
		return nil, false
	}
}
