// Package capture acquires the local camera and microphone used during a
// practice session.
//
// Two backends exist. The ffmpeg backend streams raw frames from a v4l2
// device and PCM audio from ALSA or PulseAudio through ffmpeg subprocesses.
// The file backend replays still images and a WAV file, which keeps headless
// demos and tests independent of real hardware. Every acquired device is
// guarded by a lock file so two sessions never share a camera, and Release
// stops all tracks no matter how often it is called.
//
// ListDevices enumerates capture hardware through udev and DeviceMonitor
// reports hot-unplug events for devices held by a session.
package capture
