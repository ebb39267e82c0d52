// Package naming provides the naming conventions shared by the deploy and
// remove flows: instance names, content library item names, datastore disk
// paths, and the on-disk names of cached and generated artifacts.
//
// These rules are centralized so that remove can always locate exactly the
// resources deploy created.
package naming

import "fmt"

// InstanceName returns the VM name as it appears in vSphere.
// An optional prefix is joined with a hyphen.
//
// Example: prefix "lab", name "web" → "lab-web"
func InstanceName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", prefix, name)
}

// LibraryItemName returns the content library item name for an imported
// CoreOS image. Format: fedora-coreos-{stream}-{version}
func LibraryItemName(stream, version string) string {
	return fmt.Sprintf("fedora-coreos-%s-%s", stream, version)
}

// OVAFileName returns the local file name for a downloaded CoreOS OVA.
// Format: coreos-{stream}-{version}.ova
func OVAFileName(stream, version string) string {
	return fmt.Sprintf("coreos-%s-%s.ova", stream, version)
}

// SignatureFileName returns the local file name for the detached signature
// of a downloaded OVA.
func SignatureFileName(stream, version string) string {
	return OVAFileName(stream, version) + ".sig"
}

// StreamFileName returns the cache file name for a stream manifest.
// Format: {stream}.json
func StreamFileName(stream string) string {
	return fmt.Sprintf("%s.json", stream)
}

// DiskDocker returns the datastore path of an instance's docker data disk,
// relative to the datastore root. The disk lives in the VM directory so it
// survives redeploys under the same instance name.
func DiskDocker(instanceName string) string {
	return fmt.Sprintf("%s/%s-docker.vmdk", instanceName, instanceName)
}

// DiskData returns the datastore path of an instance's general data disk.
func DiskData(instanceName string) string {
	return fmt.Sprintf("%s/%s-data.vmdk", instanceName, instanceName)
}

// SerialLogFile returns the datastore path of the debug serial port log.
func SerialLogFile(instanceName string) string {
	return fmt.Sprintf("%s/%s-serial.log", instanceName, instanceName)
}

// IgnitionArtifact returns the file name of the compressed, base64-encoded
// Ignition document written next to the Butane source.
func IgnitionArtifact(name string) string {
	return fmt.Sprintf("%s.ign.gzip.b64", name)
}

// IgnitionPlain returns the file name of the plaintext Ignition document
// written in non-deploy mode.
func IgnitionPlain(name string) string {
	return fmt.Sprintf("%s.ign.json", name)
}
