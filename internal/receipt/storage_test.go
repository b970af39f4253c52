package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "scans"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			name      string
			savedName string
			err       error
		)

		BeforeEach(func() {
			name = "scan-1_receipt.jpg"
		})

		JustBeforeEach(func() {
			savedName, err = storage.Save(name, []byte("image bytes"))
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns the storage name", func() {
				Expect(savedName).To(Equal(name))
			})

			It("writes the image under the storage directory", func() {
				Expect(filepath.Join(tmpDir, "scans", name)).To(BeAnExistingFile())
			})
		})

		When("the name escapes the storage directory", func() {
			BeforeEach(func() {
				name = "../outside.jpg"
			})

			It("rejects the name", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage name")))
				Expect(filepath.Join(tmpDir, "outside.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("the name is empty", func() {
			BeforeEach(func() {
				name = ""
			})

			It("rejects the name", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage name")))
			})
		})
	})

	Describe("Get", func() {
		var (
			name string
			data []byte
			err  error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(name)
		})

		When("the image exists", func() {
			BeforeEach(func() {
				name = "scan-1_receipt.jpg"
				_, saveErr := storage.Save(name, []byte("image bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("returns the image bytes", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("image bytes"))
			})
		})

		When("the image does not exist", func() {
			BeforeEach(func() {
				name = "missing.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})

		When("the name is a path", func() {
			BeforeEach(func() {
				name = "/etc/passwd"
			})

			It("rejects the name", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage name")))
			})
		})
	})

	Describe("Delete", func() {
		var (
			name string
			err  error
		)

		JustBeforeEach(func() {
			err = storage.Delete(name)
		})

		When("the image exists", func() {
			BeforeEach(func() {
				name = "scan-1_receipt.jpg"
				_, saveErr := storage.Save(name, []byte("image bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("removes the file", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, "scans", name)).NotTo(BeAnExistingFile())
			})
		})

		When("the image does not exist", func() {
			BeforeEach(func() {
				name = "missing.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})

	Describe("NewLocalStorage", func() {
		It("creates the directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "nested", "scans")
			_, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
