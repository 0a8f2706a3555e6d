package main

import (
	"os"
	"regexp"
)

const defaultServiceID = "city-vault"

var (
	// <deployment>-<replicaset hash>-<pod suffix>
	deploymentPodName = regexp.MustCompile(`^(.+)-[a-z0-9]{6,10}-[a-z0-9]{5}$`)
	// <statefulset>-<ordinal>
	statefulSetPodName = regexp.MustCompile(`^(.+)-[0-9]+$`)
)

// dephealthServiceID names this instance in dependency metrics after the
// workload that owns the pod.
func dephealthServiceID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return defaultServiceID
	}
	return parseOwnerName(hostname)
}

// parseOwnerName strips the pod suffix Kubernetes appends to a Deployment
// or StatefulSet name. Other hostnames are returned as is.
func parseOwnerName(hostname string) string {
	if m := deploymentPodName.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	if m := statefulSetPodName.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	return hostname
}
