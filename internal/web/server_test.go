package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jimmylelievre/billed/internal/bill"
	"github.com/jimmylelievre/billed/internal/session"
)

var _ = Describe("Server", func() {
	var (
		ts         *testServer
		httpServer *httptest.Server
		client     *http.Client
	)

	BeforeEach(func() {
		ts = newTestServer()
		httpServer = httptest.NewServer(ts.server)

		// Redirects are assertions here, not transport noise
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	})

	AfterEach(func() {
		httpServer.Close()
	})

	login := func() {
		Expect(ts.session.Login(session.Session{Type: session.TypeEmployee, Email: "employee@test.tld"})).NotTo(HaveOccurred())
	}

	readBody := func(resp *http.Response) string {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(body)
	}

	Describe("handleIndex", func() {
		When("no session exists", func() {
			It("should serve the login screen", func() {
				resp, err := client.Get(httpServer.URL + "/")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(readBody(resp)).To(ContainSubstring(`data-testid="form-employee"`))
			})
		})

		When("a session exists", func() {
			BeforeEach(login)

			It("should redirect to the bill list", func() {
				resp, err := client.Get(httpServer.URL + "/")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
				Expect(resp.Header.Get("Location")).To(Equal("/employee/bills"))
			})
		})

		When("the path is not in the route table", func() {
			It("should serve the 404 screen", func() {
				resp, err := client.Get(httpServer.URL + "/nulle-part")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(readBody(resp)).To(ContainSubstring("Erreur 404"))
			})
		})
	})

	Describe("handleLogin", func() {
		It("should store the identity and redirect to the bill list", func() {
			resp, err := client.PostForm(httpServer.URL+"/login", url.Values{
				"email": {"employee@test.tld"},
			})
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/employee/bills"))

			sess, err := ts.session.Current()
			Expect(err).NotTo(HaveOccurred())
			Expect(sess).NotTo(BeNil())
			Expect(sess.Email).To(Equal("employee@test.tld"))
			Expect(sess.Type).To(Equal(session.TypeEmployee))
		})

		When("the email is missing", func() {
			It("should return status Bad Request", func() {
				resp, err := client.PostForm(httpServer.URL+"/login", url.Values{})
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleLogout", func() {
		BeforeEach(login)

		It("should drop the identity and redirect to the landing page", func() {
			resp, err := client.Post(httpServer.URL+"/logout", "application/x-www-form-urlencoded", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/"))

			sess, err := ts.session.Current()
			Expect(err).NotTo(HaveOccurred())
			Expect(sess).To(BeNil())
		})
	})

	Describe("handleBillsPage", func() {
		When("a session exists", func() {
			BeforeEach(func() {
				login()
				_, err := ts.service.CreateBill(&bill.Bill{
					Email:  "employee@test.tld",
					Type:   "Transports",
					Name:   "Vol Paris Londres",
					Date:   "2024-01-10",
					Amount: 34800,
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("should serve the bill list", func() {
				resp, err := client.Get(httpServer.URL + "/employee/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body := readBody(resp)
				Expect(body).To(ContainSubstring(`data-testid="tbody"`))
				Expect(body).To(ContainSubstring("Vol Paris Londres"))
			})
		})

		When("no session exists", func() {
			It("should serve the login screen", func() {
				resp, err := client.Get(httpServer.URL + "/employee/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(readBody(resp)).To(ContainSubstring(`data-testid="form-employee"`))
			})
		})
	})

	Describe("handleNewBillPage", func() {
		BeforeEach(login)

		It("should serve the creation form", func() {
			resp, err := client.Get(httpServer.URL + "/employee/bill/new")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring(`data-testid="form-new-bill"`))
		})
	})

	Describe("handleSubmitNewBill", func() {
		var (
			body        *bytes.Buffer
			contentType string
		)

		buildForm := func(filename string, fields map[string]string) {
			body = &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			if filename != "" {
				part, err := writer.CreateFormFile("file", filename)
				Expect(err).NotTo(HaveOccurred())
				_, err = part.Write([]byte("fake image data"))
				Expect(err).NotTo(HaveOccurred())
			}
			for key, value := range fields {
				Expect(writer.WriteField(key, value)).NotTo(HaveOccurred())
			}
			Expect(writer.Close()).NotTo(HaveOccurred())
			contentType = writer.FormDataContentType()
		}

		validFields := map[string]string{
			"expense-type": "Transports",
			"expense-name": "Vol Paris Londres",
			"datepicker":   "2024-01-10",
			"amount":       "348",
			"vat":          "70",
			"pct":          "20",
			"commentary":   "Aller simple",
		}

		BeforeEach(login)

		When("the form carries an accepted file and all fields", func() {
			BeforeEach(func() {
				buildForm("justificatif.png", validFields)
			})

			It("should create the bill and redirect to the bill list", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
				Expect(resp.Header.Get("Location")).To(Equal("/employee/bills"))

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(1))
				Expect(bills[0].Name).To(Equal("Vol Paris Londres"))
				Expect(bills[0].Status).To(Equal(bill.StatusPending))
				Expect(bills[0].Amount).To(Equal(34800))
				Expect(bills[0].FileName).To(Equal("justificatif.png"))
			})

			It("should persist the receipt file", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(1))

				name := strings.TrimPrefix(bills[0].FileURL, "/api/files/")
				data, err := ts.service.GetReceiptFile(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("fake image data")))
			})
		})

		When("the file has a refused extension", func() {
			BeforeEach(func() {
				buildForm("justificatif.gif", validFields)
			})

			It("should return Bad Request with the error indicator shown", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				responseBody := readBody(resp)
				Expect(responseBody).To(ContainSubstring("fileInput-error-message"))
				Expect(responseBody).NotTo(ContainSubstring("fileInput-error-message--hide"))
			})

			It("should create no bill", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(BeEmpty())
			})
		})

		When("no file is attached", func() {
			BeforeEach(func() {
				buildForm("", validFields)
			})

			It("should return Bad Request and create no bill", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(BeEmpty())
			})
		})

		When("a required field is missing", func() {
			BeforeEach(func() {
				fields := map[string]string{}
				for key, value := range validFields {
					fields[key] = value
				}
				delete(fields, "datepicker")
				buildForm("justificatif.png", fields)
			})

			It("should return Bad Request and create no bill", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(BeEmpty())
			})
		})

		When("the VAT is negative", func() {
			BeforeEach(func() {
				fields := map[string]string{}
				for key, value := range validFields {
					fields[key] = value
				}
				fields["vat"] = "-70"
				buildForm("justificatif.png", fields)
			})

			It("should return Bad Request and create no bill", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(BeEmpty())
			})
		})

		When("the amount carries a decimal comma", func() {
			BeforeEach(func() {
				fields := map[string]string{}
				for key, value := range validFields {
					fields[key] = value
				}
				fields["amount"] = "348,50"
				buildForm("justificatif.png", fields)
			})

			It("should store the amount in cents", func() {
				resp, err := client.Post(httpServer.URL+"/employee/bill/new", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()

				bills, err := ts.service.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(1))
				Expect(bills[0].Amount).To(Equal(34850))
			})
		})
	})

	Describe("handlePreviewReceipt", func() {
		BeforeEach(login)

		When("a file URL is given", func() {
			It("should redirect to the receipt", func() {
				resp, err := client.Get(httpServer.URL + "/employee/bills/preview?file=" + url.QueryEscape("/api/files/id_justificatif.png"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
				Expect(resp.Header.Get("Location")).To(Equal("/api/files/id_justificatif.png"))
			})
		})

		When("the file URL is empty", func() {
			It("should fall back to the bill list", func() {
				resp, err := client.Get(httpServer.URL + "/employee/bills/preview")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
				Expect(resp.Header.Get("Location")).To(Equal("/employee/bills"))
			})
		})
	})

	Describe("bills API", func() {
		newBill := func() *bill.Bill {
			return &bill.Bill{
				Email:  "employee@test.tld",
				Type:   "Transports",
				Name:   "Vol Paris Londres",
				Date:   "2024-01-10",
				Amount: 34800,
			}
		}

		Describe("handleCreateBill", func() {
			It("should persist the bill and return status Created", func() {
				payload, err := json.Marshal(newBill())
				Expect(err).NotTo(HaveOccurred())

				resp, err := client.Post(httpServer.URL+"/api/bills", "application/json", bytes.NewReader(payload))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var created bill.Bill
				Expect(json.Unmarshal([]byte(readBody(resp)), &created)).NotTo(HaveOccurred())
				Expect(created.ID).NotTo(BeEmpty())
				Expect(created.Status).To(Equal(bill.StatusPending))
			})

			When("the bill is invalid", func() {
				It("should return status Bad Request", func() {
					invalid := newBill()
					invalid.Date = "10/01/2024"
					payload, err := json.Marshal(invalid)
					Expect(err).NotTo(HaveOccurred())

					resp, err := client.Post(httpServer.URL+"/api/bills", "application/json", bytes.NewReader(payload))
					Expect(err).NotTo(HaveOccurred())
					resp.Body.Close()
					Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				})
			})
		})

		Describe("handleListBills", func() {
			It("should return the persisted bills as JSON", func() {
				_, err := ts.service.CreateBill(newBill())
				Expect(err).NotTo(HaveOccurred())

				resp, err := client.Get(httpServer.URL + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var bills []*bill.Bill
				Expect(json.Unmarshal([]byte(readBody(resp)), &bills)).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(1))
			})
		})

		Describe("handleGetBill", func() {
			It("should return the bill", func() {
				created, err := ts.service.CreateBill(newBill())
				Expect(err).NotTo(HaveOccurred())

				resp, err := client.Get(httpServer.URL + "/api/bills/" + created.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var got bill.Bill
				Expect(json.Unmarshal([]byte(readBody(resp)), &got)).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(created.ID))
			})

			When("the bill does not exist", func() {
				It("should return status Not Found", func() {
					resp, err := client.Get(httpServer.URL + "/api/bills/missing")
					Expect(err).NotTo(HaveOccurred())
					resp.Body.Close()
					Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				})
			})
		})

		Describe("handleUpdateBill", func() {
			It("should persist the change", func() {
				created, err := ts.service.CreateBill(newBill())
				Expect(err).NotTo(HaveOccurred())
				created.Status = bill.StatusAccepted

				payload, err := json.Marshal(created)
				Expect(err).NotTo(HaveOccurred())
				req, err := http.NewRequest(http.MethodPut, httpServer.URL+"/api/bills/"+created.ID, bytes.NewReader(payload))
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				got, err := ts.service.GetBill(created.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(bill.StatusAccepted))
			})
		})

		Describe("handleDeleteBill", func() {
			It("should remove the bill and return status No Content", func() {
				created, err := ts.service.CreateBill(newBill())
				Expect(err).NotTo(HaveOccurred())

				req, err := http.NewRequest(http.MethodDelete, httpServer.URL+"/api/bills/"+created.ID, nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := client.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

				_, err = ts.service.GetBill(created.ID)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("files API", func() {
		It("should store an upload and serve it back", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			part, err := writer.CreateFormFile("file", "justificatif.png")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).NotTo(HaveOccurred())

			resp, err := client.Post(httpServer.URL+"/api/files", writer.FormDataContentType(), body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var ref bill.FileRef
			Expect(json.Unmarshal([]byte(readBody(resp)), &ref)).NotTo(HaveOccurred())
			Expect(ref.FileURL).To(HavePrefix("/api/files/"))
			Expect(ref.FileName).To(Equal("justificatif.png"))

			resp, err = client.Get(httpServer.URL + ref.FileURL)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(readBody(resp)).To(Equal("fake image data"))
		})

		It("should serve a bill's receipt by bill ID", func() {
			ref, err := ts.service.SaveReceiptFile("justificatif.png", []byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())

			created, err := ts.service.CreateBill(&bill.Bill{
				Email:    "employee@test.tld",
				Type:     "Transports",
				Date:     "2024-01-10",
				Amount:   34800,
				FileURL:  ref.FileURL,
				FileName: ref.FileName,
			})
			Expect(err).NotTo(HaveOccurred())

			resp, err := client.Get(httpServer.URL + "/api/bills/" + created.ID + "/file")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(readBody(resp)).To(Equal("fake image data"))
		})

		When("the bill carries no receipt", func() {
			It("should return status Not Found", func() {
				created, err := ts.service.CreateBill(&bill.Bill{
					Email:  "employee@test.tld",
					Type:   "Transports",
					Date:   "2024-01-10",
					Amount: 34800,
				})
				Expect(err).NotTo(HaveOccurred())

				resp, err := client.Get(httpServer.URL + "/api/bills/" + created.ID + "/file")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("the requested name climbs out of the storage directory", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(filepath.Join(ts.dir, "secret.txt"), []byte("hors limites"), 0644)).NotTo(HaveOccurred())
			})

			It("should return status Not Found for an escaped traversal name", func() {
				resp, err := client.Get(httpServer.URL + "/api/files/..%2Fsecret.txt")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(readBody(resp)).NotTo(ContainSubstring("hors limites"))
			})

			It("should return status Not Found for a deep traversal", func() {
				resp, err := client.Get(httpServer.URL + "/api/files/..%2F..%2Fetc%2Fpasswd")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.Close()).NotTo(HaveOccurred())

				resp, err := client.Post(httpServer.URL+"/api/files", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})
})
